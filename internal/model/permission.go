package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExercisesRead allows viewing exercise definitions with their answer keys.
	PermissionExercisesRead Permission = "exercises:read"

	// PermissionExercisesWrite allows creating and replacing exercise definitions.
	PermissionExercisesWrite Permission = "exercises:write"

	// PermissionResultsRead allows viewing persisted session results of any learner.
	PermissionResultsRead Permission = "results:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionExercisesRead,
	PermissionExercisesWrite,
	PermissionResultsRead,
}

// PermissionStrings converts permissions to their string codes.
func PermissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

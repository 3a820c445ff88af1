package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrTokenRevoked  ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"
	ErrLearnerOnly      ErrCode = "LEARNER_ACCESS_ONLY"
	ErrAuthorOnly       ErrCode = "AUTHOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidConfig  ErrCode = "INVALID_EXERCISE_CONFIG"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrExerciseNotFound ErrCode = "EXERCISE_NOT_FOUND"
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionLimit     ErrCode = "SESSION_LIMIT_REACHED"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrMissingExercise    ErrCode = "EXERCISE_DATA_MISSING"
	ErrAlreadyStarted     ErrCode = "SESSION_ALREADY_STARTED"
	ErrNotStarted         ErrCode = "SESSION_NOT_STARTED"
	ErrSessionPaused      ErrCode = "SESSION_PAUSED"
	ErrSessionNotPaused   ErrCode = "SESSION_NOT_PAUSED"
	ErrSessionCompleted   ErrCode = "SESSION_COMPLETED"
	ErrSessionFailed      ErrCode = "SESSION_FAILED"
	ErrNoCurrentQuestion  ErrCode = "NO_CURRENT_QUESTION"
	ErrQuestionOutOfRange ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrProgressionBlocked ErrCode = "PROGRESSION_BLOCKED"
	ErrInvalidTransition  ErrCode = "INVALID_TRANSITION"
	ErrSnapshotMismatch   ErrCode = "SNAPSHOT_MISMATCH"
	ErrNoSnapshot         ErrCode = "SNAPSHOT_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."
	case ErrTokenRevoked:
		return "Token autentikasi telah dicabut. Silakan minta token baru."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrLearnerOnly:
		return "Sumber daya ini terbatas untuk peserta latihan."
	case ErrAuthorOnly:
		return "Sumber daya ini terbatas untuk penyusun latihan."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidConfig:
		return "Konfigurasi latihan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrExerciseNotFound:
		return "Latihan tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi latihan tidak ditemukan."
	case ErrSessionLimit:
		return "Jumlah sesi latihan aktif Anda sudah mencapai batas."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrMissingExercise:
		return "Data latihan belum dimuat."
	case ErrAlreadyStarted:
		return "Sesi latihan sudah dimulai."
	case ErrNotStarted:
		return "Sesi latihan belum dimulai."
	case ErrSessionPaused:
		return "Sesi latihan sedang dijeda."
	case ErrSessionNotPaused:
		return "Sesi latihan tidak sedang dijeda."
	case ErrSessionCompleted:
		return "Sesi latihan sudah selesai."
	case ErrSessionFailed:
		return "Sesi latihan mengalami kegagalan. Silakan muat ulang latihan."
	case ErrNoCurrentQuestion:
		return "Tidak ada soal yang aktif."
	case ErrQuestionOutOfRange:
		return "Nomor soal di luar jangkauan."
	case ErrProgressionBlocked:
		return "Jawaban saat ini harus benar sebelum melanjutkan."
	case ErrInvalidTransition:
		return "Perubahan status sesi tidak diperbolehkan."
	case ErrSnapshotMismatch:
		return "Data simpanan tidak cocok dengan latihan ini."
	case ErrNoSnapshot:
		return "Tidak ada simpanan sesi untuk dipulihkan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

package config

type WorkerKeyStruct struct {
	PersistResultsQueue  string
	PersistSessionsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue:  "persist_results_queue",
	PersistSessionsQueue: "persist_sessions_queue",
}

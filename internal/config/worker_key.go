package config

type WorkerKeyStruct struct {
	PersistResultsQueue      string
	PersistAnswerEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue:      "persist_results_queue",
	PersistAnswerEventsQueue: "persist_answer_events_queue",
}

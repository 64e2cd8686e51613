package domain

// Inbound event names.
const (
	EventCreateSession    = "create_session"
	EventJoinSession      = "join_session"
	EventStartTimer       = "start_timer"
	EventSubmitAnswer     = "submit_answer"
	EventTimeUp           = "time_up"
	EventRequestFinalData = "request_final_data"
)

// Outbound event names.
const (
	EventUpdateCount       = "update_count"
	EventQuestionStarted   = "question_started"
	EventReceiveAnswer     = "receive_answer"
	EventQuestionResult    = "question_result"
	EventLeaderboardUpdate = "leaderboard_update"
	EventFinalDataSent     = "final_data_sent"
	EventError             = "error"
)

package kafka

// Topic definitions for the options event stream
const (
	TopicOptionMinted      = "options.minted"
	TopicOptionTransferred = "options.transferred"
	TopicOptionExercised   = "options.exercised"
	TopicOptionCancelled   = "options.cancelled"
	TopicOptionExpired     = "options.expired"
)

package frame

// Limits constrains parser memory use. Zero disables a limit.
type Limits struct {
	// MaxMessageBytes caps the required length of any single message.
	MaxMessageBytes int
	// MaxBufferedBytes caps bytes held while awaiting a message.
	MaxBufferedBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 8 * 1024 * 1024,
	}
}

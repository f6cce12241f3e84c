package email

const (
	subjectCallRequestFmt = "Call request: %s, %s"
)

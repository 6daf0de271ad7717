package logging

// Component constants for structured logging
const (
	ComponentStartup  = "startup"
	ComponentDatabase = "database"
	ComponentAuth     = "auth"
	ComponentDevices  = "devices"
	ComponentCommands = "commands"
	ComponentPoll     = "api-poll"
	ComponentAgent    = "agent"
	ComponentDispatch = "dispatch"
	ComponentRegister = "register"
)

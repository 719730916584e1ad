package logging

import "go.uber.org/zap"

// Loggers.
var (
	// AppLogger is the main app.App logger.
	AppLogger *zap.Logger
	// DBLogger is used for stuff regarding the database connection.
	DBLogger *zap.Logger
	// ArenaLogger is the logger for the arena package.
	ArenaLogger *zap.Logger
	// JudgeLogger is used for communication with the judge collaborator.
	JudgeLogger *zap.Logger
	// MessageLogger is used for all incoming and outgoing messages.
	MessageLogger *zap.Logger
	// ReceptionLogger is the logger for client reception.
	ReceptionLogger *zap.Logger
	// PortalLogger is used for all stuff regarding the MQTT portal.
	PortalLogger *zap.Logger
	// WebServerLogger is used for all stuff regarding web servers.
	WebServerLogger *zap.Logger
	// WSLogger is used for all stuff regarding websocket connections.
	WSLogger *zap.Logger
)

func init() {
	// Assure usable loggers even before ApplyToGlobalLoggers was called. Mostly
	// relevant for tests.
	ApplyToGlobalLoggers(zap.NewNop())
}

// ApplyToGlobalLoggers applies the given zap.Logger to all global loggers with
// their respective names.
func ApplyToGlobalLoggers(logger *zap.Logger) {
	AppLogger = logger.Named("app")
	DBLogger = logger.Named("db")
	ArenaLogger = logger.Named("arena")
	JudgeLogger = logger.Named("judge")
	MessageLogger = logger.Named("message")
	ReceptionLogger = logger.Named("reception")
	PortalLogger = logger.Named("portal")
	WebServerLogger = logger.Named("web-server")
	WSLogger = logger.Named("ws")
}

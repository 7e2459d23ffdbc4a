package rabbitmq_adapter

import "property-import-service/internal/core/port"

type testLogger struct{}

func (testLogger) Info(string, port.Fields)                 {}
func (testLogger) Warn(string, port.Fields)                 {}
func (testLogger) Error(string, error, port.Fields)         {}
func (testLogger) Debug(string, port.Fields)                {}
func (l testLogger) WithFields(port.Fields) port.LoggerPort { return l }

var _ port.LoggerPort = testLogger{}

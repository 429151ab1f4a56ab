package domain

var Tables = []interface{}{
	// System
	&SysOpr{},
	// Messaging
	&Tenant{},
	&Session{},
	&MessageEvent{},
	&ProcessedEvent{},
}

package models

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&ServicePoint{},
		&Device{},
		&DeviceLocation{},
		&ObdLog{},
		&Alert{},
	}
}

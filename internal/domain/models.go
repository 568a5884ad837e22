package domain

// Models lists every table, in dependency order, for AutoMigrate
func Models() []any {
	return []any{
		&User{},
		&Address{},
		&Wallet{},
		&Transaction{},
		&Beneficiary{},
		&PaymentMethod{},
		&Notification{},
	}
}

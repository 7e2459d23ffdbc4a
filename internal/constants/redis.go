package constants

// Ключи Redis
const (
	LedgerKeyPrefix     = "import:job:"
	PropertiesKeyPrefix = "properties:"
)

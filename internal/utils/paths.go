package utils

const (
	FileStorePath = "/var/lib/cidrvend/allocations.json"
	BoltStorePath = "/var/lib/cidrvend/allocations.db"
)

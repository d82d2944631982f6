package models

// MongoDbCollection is the name of a collection inside the configured database
type MongoDbCollection string

func (c MongoDbCollection) String() string {
	return string(c)
}

// Instance names one of the two backing database deployments
type Instance int

const (
	PrimaryInstance Instance = iota
	SecondaryInstance
)

func (i Instance) String() string {
	switch i {
	case PrimaryInstance:
		return "primary"
	case SecondaryInstance:
		return "secondary"
	}
	return "unknown"
}

package vending

type ServiceAllocateModel struct {
	OwnerId string
	Region  string
}

type ServiceBindModel struct {
	OwnerId    string
	BlockCidr  string
	ResourceId string
}

type ServiceReleaseModel struct {
	OwnerId   string
	BlockCidr string
}

type ServiceLookupModel struct {
	OwnerId   string
	BlockCidr string
}

// operation labels used in metrics and logs
const (
	opAllocate = "allocate"
	opBind     = "bind"
	opRelease  = "release"
	opLookup   = "lookup"
)

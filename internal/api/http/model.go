package http

// query parameters on /vpc
const (
	paramRegion    = "region"
	paramCidrBlock = "cidr_block"
	paramVpcId     = "vpc_id"
)

// BlockRecord documents the flat record body returned on success.
type BlockRecord struct {
	VpcCidrBlock     string `json:"vpcCidrBlock" example:"10.0.0.0/24"`
	CreatedAt        string `json:"createdAt" example:"2020-09-01 12:00:00.000000"`
	AccountId        string `json:"accountId" example:"123456789012"`
	VpcRegion        string `json:"vpcRegion" example:"eu-west-1"`
	Subnet0CidrBlock string `json:"subnet0CidrBlock" example:"10.0.0.0/26"`
	VpcId            string `json:"vpcId,omitempty" example:"vpc-0abc"`
}

type ApiResponse struct {
	Status  string `json:"status"` // success | fail
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

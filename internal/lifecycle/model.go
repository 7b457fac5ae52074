package lifecycle

// PhysicalResourceId identifies every allocation resource towards the
// orchestrator.
const PhysicalResourceId = "VpcCidrBlockAllocation"

const (
	RequestCreate = "Create"
	RequestUpdate = "Update"
	RequestDelete = "Delete"

	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Request is a custom resource lifecycle event.
type Request struct {
	RequestType        string     `json:"RequestType"`
	ResponseURL        string     `json:"ResponseURL"`
	StackId            string     `json:"StackId"`
	RequestId          string     `json:"RequestId"`
	LogicalResourceId  string     `json:"LogicalResourceId"`
	PhysicalResourceId string     `json:"PhysicalResourceId,omitempty"`
	ResourceType       string     `json:"ResourceType"`
	ResourceProperties Properties `json:"ResourceProperties"`
}

type Properties struct {
	ServiceToken string `json:"ServiceToken,omitempty"`
	VpcId        string `json:"vpcId,omitempty"`
	CidrBlock    string `json:"cidrBlock,omitempty"`
}

// Response is the terminal signal delivered to Request.ResponseURL.
type Response struct {
	Status             string            `json:"Status"`
	Reason             string            `json:"Reason,omitempty"`
	PhysicalResourceId string            `json:"PhysicalResourceId"`
	StackId            string            `json:"StackId"`
	RequestId          string            `json:"RequestId"`
	LogicalResourceId  string            `json:"LogicalResourceId"`
	NoEcho             bool              `json:"NoEcho,omitempty"`
	Data               map[string]string `json:"Data"`
}

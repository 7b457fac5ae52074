package logger

type Logger interface {
	Write(event Event)
}

// Event is one audit record per API request.
type Event struct {
	TS            string `json:"ts"`
	EventId       string `json:"event_id"`
	CorrelationId string `json:"correlation_id,omitempty"`
	Severity      string `json:"severity"`

	Actor Actor `json:"actor"`

	Action string `json:"action,omitempty"`
	Target Target `json:"target,omitempty"`

	Request Request `json:"request"`
	Result  Result  `json:"result"`

	Runtime Runtime `json:"runtime"`

	Extra map[string]any `json:"extra,omitempty"`
}

type Actor struct {
	AccountId       string `json:"account_id,omitempty"`
	Principal       string `json:"principal,omitempty"`
	CertFingerprint string `json:"cert_fingerprint,omitempty"`
	PeerIp          string `json:"peer_ip,omitempty"`
}

type Target struct {
	BlockCidr  string `json:"block_cidr,omitempty"`
	ResourceId string `json:"resource_id,omitempty"`
	Region     string `json:"region,omitempty"`
}

type Request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Host   string `json:"host,omitempty"`
}

type Result struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type Runtime struct {
	Component string `json:"component,omitempty"`
	Node      string `json:"node,omitempty"`
}

type ctxKey int

var Severity = map[int]string{
	0: "information",
	1: "low",
	2: "medium",
	3: "high",
	4: "critical",
}

const (
	SEV_INFO     = 0
	SEV_LOW      = 1
	SEV_MEDIUM   = 2
	SEV_HIGH     = 3
	SEV_CRITICAL = 4
)

type Rule struct {
	Method   string
	Pattern  string
	Action   string
	Severity int
}

var rules = []Rule{
	// vpc blocks
	{"GET", "/vpc", "vpc.lookup", SEV_INFO},
	{"POST", "/vpc", "vpc.allocate", SEV_MEDIUM},
	{"PATCH", "/vpc", "vpc.bind", SEV_MEDIUM},
	{"DELETE", "/vpc", "vpc.release", SEV_HIGH},

	// ops
	{"GET", "/healthz", "ops.health", SEV_INFO},
	{"GET", "/metrics", "ops.metrics", SEV_INFO},
}

// severities for actions set explicitly by handlers
var actionSeverity = map[string]int{
	"vpc.allocate.exhausted": SEV_HIGH,
	"vpc.bind.denied":        SEV_HIGH,
	"vpc.release.denied":     SEV_HIGH,
}

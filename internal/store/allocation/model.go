package allocation

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// wire attribute names, shared by the HTTP payload and the DynamoDB item
const (
	AttrBlockCidr       = "vpcCidrBlock"
	AttrCreatedAt       = "createdAt"
	AttrOwnerId         = "accountId"
	AttrRegion          = "vpcRegion"
	AttrBoundResourceId = "vpcId"

	subBlockAttrPrefix = "subnet"
	subBlockAttrSuffix = "CidrBlock"
)

// CreatedAtLayout is the timestamp layout stored in createdAt.
const CreatedAtLayout = "2006-01-02 15:04:05.000000"

// Record is one allocated block.
type Record struct {
	BlockCidr       string
	CreatedAt       time.Time
	OwnerId         string
	Region          string
	SubBlocks       []string
	BoundResourceId string
}

// SubBlockAttr returns the wire attribute name of the i-th sub block.
func SubBlockAttr(i int) string {
	return subBlockAttrPrefix + strconv.Itoa(i) + subBlockAttrSuffix
}

// Attributes flattens the record into its wire shape.
func (r *Record) Attributes() map[string]string {
	attrs := map[string]string{
		AttrBlockCidr: r.BlockCidr,
		AttrCreatedAt: r.CreatedAt.UTC().Format(CreatedAtLayout),
		AttrOwnerId:   r.OwnerId,
		AttrRegion:    r.Region,
	}
	for i, sb := range r.SubBlocks {
		attrs[SubBlockAttr(i)] = sb
	}
	if r.BoundResourceId != "" {
		attrs[AttrBoundResourceId] = r.BoundResourceId
	}
	return attrs
}

// RecordFromAttributes rebuilds a record from its wire shape.
func RecordFromAttributes(attrs map[string]string) (*Record, error) {
	blockCidr := attrs[AttrBlockCidr]
	if blockCidr == "" {
		return nil, errors.Errorf("missing %s", AttrBlockCidr)
	}

	r := &Record{
		BlockCidr:       blockCidr,
		OwnerId:         attrs[AttrOwnerId],
		Region:          attrs[AttrRegion],
		BoundResourceId: attrs[AttrBoundResourceId],
	}

	if v := attrs[AttrCreatedAt]; v != "" {
		ts, err := time.Parse(CreatedAtLayout, v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", AttrCreatedAt)
		}
		r.CreatedAt = ts
	}

	type indexed struct {
		idx   int
		block string
	}
	var subs []indexed
	for k, v := range attrs {
		if !strings.HasPrefix(k, subBlockAttrPrefix) || !strings.HasSuffix(k, subBlockAttrSuffix) {
			continue
		}
		n := strings.TrimSuffix(strings.TrimPrefix(k, subBlockAttrPrefix), subBlockAttrSuffix)
		idx, err := strconv.Atoi(n)
		if err != nil || idx < 0 {
			continue
		}
		subs = append(subs, indexed{idx: idx, block: v})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].idx < subs[j].idx })
	for i, s := range subs {
		if s.idx != i {
			return nil, errors.Errorf("sub block attributes not contiguous at index %d", i)
		}
		r.SubBlocks = append(r.SubBlocks, s.block)
	}

	return r, nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Attributes())
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var attrs map[string]string
	if err := json.Unmarshal(b, &attrs); err != nil {
		return err
	}
	rec, err := RecordFromAttributes(attrs)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// Update is the mutation applied by UpdateIfOwner.
type Update struct {
	BoundResourceId string
}

type fileState struct {
	Version string             `json:"version"`
	Records map[string]*Record `json:"records"`
}

package ipam

import (
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"
)

// maxSubBlocks bounds the number of sub blocks stored on one record.
const maxSubBlocks = 256

// Pool describes how the master block is carved up: first into blocks of
// BlockBits, then each block into sub blocks of SubBits.
type Pool struct {
	Master    netip.Prefix
	BlockBits int
	SubBits   int
}

func NewPool(master string, blockBits int, subBits int) (Pool, error) {
	prefix, err := netip.ParsePrefix(master)
	if err != nil {
		return Pool{}, errors.Wrapf(err, "invalid master block %q", master)
	}
	if !prefix.Addr().Is4() {
		return Pool{}, errors.Errorf("master block %s: ipv4 only supported", prefix)
	}
	if prefix.Masked() != prefix {
		return Pool{}, errors.Errorf("master block %s: host bits must be zero", prefix)
	}
	if blockBits < prefix.Bits() || blockBits > 32 {
		return Pool{}, errors.Errorf("block netmask /%d must be between /%d and /32", blockBits, prefix.Bits())
	}
	if subBits < blockBits || subBits > 32 {
		return Pool{}, errors.Errorf("sub block netmask /%d must be between /%d and /32", subBits, blockBits)
	}

	pool := Pool{Master: prefix, BlockBits: blockBits, SubBits: subBits}
	if pool.NumSubBlocks() > maxSubBlocks {
		return Pool{}, errors.Errorf("sub block netmask /%d yields more than %d sub blocks per block", subBits, maxSubBlocks)
	}
	return pool, nil
}

// NumCandidates is the size of the candidate space, 2^(BlockBits - master bits).
func (p Pool) NumCandidates() uint64 {
	return 1 << uint(p.BlockBits-p.Master.Bits())
}

// NumSubBlocks is the number of sub blocks per block.
func (p Pool) NumSubBlocks() int {
	return 1 << uint(p.SubBits-p.BlockBits)
}

// Candidate returns the i-th block of the master block in ascending order.
// Candidates are aligned on BlockBits, so distinct indices never overlap.
func (p Pool) Candidate(i uint64) netip.Prefix {
	return nthChild(p.Master, p.BlockBits, i)
}

// Contains reports whether block is a candidate of this pool.
func (p Pool) Contains(block netip.Prefix) bool {
	return block.Bits() == p.BlockBits && p.Master.Overlaps(block) && block.Masked() == block
}

// Partition splits block into equal sub blocks of subBits, ascending.
func Partition(block netip.Prefix, subBits int) []netip.Prefix {
	n := 1 << uint(subBits-block.Bits())
	subs := make([]netip.Prefix, 0, n)
	for i := 0; i < n; i++ {
		subs = append(subs, nthChild(block, subBits, uint64(i)))
	}
	return subs
}

func nthChild(parent netip.Prefix, bits int, i uint64) netip.Prefix {
	a4 := parent.Addr().As4()
	base := binary.BigEndian.Uint32(a4[:])
	step := uint64(1) << uint(32-bits)

	var out [4]byte
	binary.BigEndian.PutUint32(out[:], uint32(uint64(base)+i*step))
	return netip.PrefixFrom(netip.AddrFrom4(out), bits)
}

func prefixStrings(prefixes []netip.Prefix) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.String()
	}
	return out
}

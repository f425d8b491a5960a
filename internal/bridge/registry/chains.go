package registry

// DefaultFirstBlocks restores the per-chain bridge-deployment first block
// from original_source/indexer/rpc.py's _start_blocks, used as the
// fallback when a chain's configuration omits FirstBlock.
var DefaultFirstBlocks = map[string]uint64{
	"ethereum":  13566427,
	"arbitrum":  2876718,
	"avalanche": 6619002,
	"bsc":       12431591,
	"fantom":    21297076,
	"polygon":   21071348,
	"harmony":   19163634,
	"boba":      16221,
	"moonriver": 890949,
	"optimism":  30819,
	"aurora":    56092179,
	"moonbeam":  173355,
	"cronos":    1578335,
	"metis":     957508,
	"dfk":       0,
}

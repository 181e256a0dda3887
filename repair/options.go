package repair

import (
	"xorkevin.dev/bitmend/stripe"
)

type (
	// Options are the redundancy options used when creating redundancy files
	//
	// Redundancy files record their own options, which take precedence when
	// verifying and repairing.
	Options struct {
		BlockSize      int    `mapstructure:"block_size"`
		NumParityDisks int    `mapstructure:"num_parity_disks"`
		ParityType     string `mapstructure:"parity_type"`
		CksumAlgo      string `mapstructure:"cksum_algo"`
		NumProcs       int    `mapstructure:"num_procs"`
		DirectIO       bool   `mapstructure:"direct_io"`
	}
)

const (
	DefaultBlockSize      = 4096
	DefaultNumParityDisks = 1
	DefaultParityType     = "i"
	DefaultCksumAlgo      = "SHA1"
	DefaultNumProcs       = 1
)

func DefaultOptions() Options {
	return Options{
		BlockSize:      DefaultBlockSize,
		NumParityDisks: DefaultNumParityDisks,
		ParityType:     DefaultParityType,
		CksumAlgo:      DefaultCksumAlgo,
		NumProcs:       DefaultNumProcs,
	}
}

// StripeConfig returns the redundancy config for new redundancy files
func (o Options) StripeConfig() (stripe.Config, error) {
	kind, err := stripe.ParseKind(o.ParityType)
	if err != nil {
		return stripe.Config{}, err
	}
	return stripe.Config{
		BlockSize:   o.BlockSize,
		ParityDisks: o.NumParityDisks,
		Kind:        kind,
		Algorithm:   o.CksumAlgo,
	}, nil
}

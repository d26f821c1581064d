package wallet

// NewMnemonicOpts is the struct given to the NewMnemonic method.
type NewMnemonicOpts struct {
	// Words is the mnemonic length, one of 12, 15, 18, 21 or 24. Zero
	// falls back to 12.
	Words int
}

func (o NewMnemonicOpts) validate() error {
	switch o.Words {
	case 0, 12, 15, 18, 21, 24:
		return nil
	default:
		return ErrInvalidWordCount
	}
}

// NewMnemonic generates a fresh BIP39 mnemonic of the requested length.
func NewMnemonic(opts NewMnemonicOpts) ([]string, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	words := opts.Words
	if words == 0 {
		words = 12
	}
	// every 3 words encode 32 bits of entropy
	return generateMnemonic(words / 3 * 32)
}

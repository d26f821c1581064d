package domain

// EntryKind is the well-known type identifier keying a metadata entry in
// the remote store tree.
type EntryKind int

const (
	EntryKindEthereum    EntryKind = 5
	EntryKindBitcoinCash EntryKind = 7
	EntryKindBitcoin     EntryKind = 8
	EntryKindStellar     EntryKind = 11
)

// MetadataNodeEntry is a versioned, asset-scoped record stored in the
// encrypted remote metadata tree. Entries are the source of truth for
// non-derivable state only, key material is always re-derivable and must
// never be stored in an entry.
type MetadataNodeEntry interface {
	Kind() EntryKind
}

// AccountEntry mirrors one HD account inside a UTXO asset entry.
type AccountEntry struct {
	Index             int    `json:"index"`
	Label             string `json:"label"`
	Archived          bool   `json:"archived"`
	ExtendedPublicKey string `json:"xpub,omitempty"`
}

// BitcoinEntry is the Bitcoin metadata record.
type BitcoinEntry struct {
	Accounts            []AccountEntry    `json:"accounts"`
	DefaultAccountIndex int               `json:"default_account_idx"`
	HasSeen             bool              `json:"has_seen"`
	ImportedAddresses   []string          `json:"imported_addresses,omitempty"`
	TxNotes             map[string]string `json:"tx_notes,omitempty"`
}

func (e *BitcoinEntry) Kind() EntryKind { return EntryKindBitcoin }

// BitcoinCashEntry is the Bitcoin Cash metadata record. It shares the
// Bitcoin shape but tracks the legacy derivation, the only one the chain
// supports.
type BitcoinCashEntry struct {
	Accounts            []AccountEntry    `json:"accounts"`
	DefaultAccountIndex int               `json:"default_account_idx"`
	HasSeen             bool              `json:"has_seen"`
	ImportedAddresses   []string          `json:"imported_addresses,omitempty"`
	TxNotes             map[string]string `json:"tx_notes,omitempty"`
}

func (e *BitcoinCashEntry) Kind() EntryKind { return EntryKindBitcoinCash }

// EthereumEntry is the Ethereum metadata record: a single account-based
// address plus its label and notes.
type EthereumEntry struct {
	Address   string            `json:"address"`
	Label     string            `json:"label"`
	HasSeen   bool              `json:"has_seen"`
	TxNotes   map[string]string `json:"tx_notes,omitempty"`
	LastTxDay int64             `json:"last_tx_timestamp,omitempty"`
}

func (e *EthereumEntry) Kind() EntryKind { return EntryKindEthereum }

// NewDefaultBitcoinEntry synthesizes the entry a wallet gets on first use:
// one account record per HD account, not archived, labeled after the
// account, carrying the xpub of the account's default derivation.
func NewDefaultBitcoinEntry(w *HDWallet) *BitcoinEntry {
	return &BitcoinEntry{
		Accounts:            accountEntries(w, DerivationSegwit),
		DefaultAccountIndex: int(w.DefaultAccountIndex),
	}
}

// NewDefaultBitcoinCashEntry synthesizes the first-use Bitcoin Cash entry,
// with the legacy xpub of every HD account.
func NewDefaultBitcoinCashEntry(w *HDWallet) *BitcoinCashEntry {
	return &BitcoinCashEntry{
		Accounts:            accountEntries(w, DerivationLegacy),
		DefaultAccountIndex: int(w.DefaultAccountIndex),
	}
}

// NewDefaultEthereumEntry synthesizes the first-use Ethereum entry for the
// given account address.
func NewDefaultEthereumEntry(address, label string) *EthereumEntry {
	return &EthereumEntry{
		Address: address,
		Label:   label,
	}
}

func accountEntries(w *HDWallet, derivationType DerivationType) []AccountEntry {
	entries := make([]AccountEntry, 0, len(w.Accounts))
	for _, account := range w.Accounts {
		xpub := ""
		if derivation := account.Derivation(derivationType); derivation != nil {
			xpub = derivation.ExtendedPublicKey
		}
		entries = append(entries, AccountEntry{
			Index:             int(account.Index),
			Label:             account.Label,
			Archived:          false,
			ExtendedPublicKey: xpub,
		})
	}
	return entries
}

package consensus

import "math/big"

// Header bytes identifying each on-disk block/record variant (spec §3).
const (
	HeaderToken            byte = 1
	HeaderTransactionBlock byte = 2
	HeaderDerivativeBlock  byte = 3
	HeaderSummarizeBlock   byte = 4
	HeaderGenesisBlock     byte = 5
)

// MaxTransactionsPerBlock bounds TransactionBlock.Transactions (spec §3/§4.D).
const MaxTransactionsPerBlock = 65535

// BasicInfo is the common block header, spec §3 ("112+ bytes" — variable
// because Pow is a length-prefixed BigUint).
type BasicInfo struct {
	Timestamp    uint64
	Pow          *big.Int
	PreviousHash [32]byte
	Height       *big.Int // U256
	Difficulty   [32]byte
	Founder      Address
}

// Dump writes timestamp(8) ‖ dump(pow) ‖ previous_hash(32) ‖ height(32,
// fixed) ‖ difficulty(32) ‖ founder(33).
func (b *BasicInfo) Dump() ([]byte, error) {
	var buf []byte
	buf = appendU64BE(buf, b.Timestamp)
	var err error
	buf, err = DumpBiguint(b.Pow, buf)
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindBasicInfoDump, "pow", err)
	}
	buf = append(buf, b.PreviousHash[:]...)
	heightFixed, err := U256FixedBytes(b.Height)
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindBasicInfoDump, "height", err)
	}
	buf = append(buf, heightFixed[:]...)
	buf = append(buf, b.Difficulty[:]...)
	buf = append(buf, b.Founder[:]...)
	return buf, nil
}

// ParseBasicInfo is the inverse of Dump; it returns the decoded value plus
// the number of bytes consumed from data's front, since BasicInfo is
// always embedded inside a larger block record.
func ParseBasicInfo(data []byte) (*BasicInfo, int, error) {
	c := newCursor(data)
	timestamp, err := c.readU64BE()
	if err != nil {
		return nil, 0, wrapErr(CategoryBlock, KindBasicInfoParse, "timestamp", err)
	}
	pow, consumed, err := LoadBiguint(c.b[c.pos:])
	if err != nil {
		return nil, 0, wrapErr(CategoryBlock, KindBasicInfoParse, "pow", err)
	}
	c.pos += consumed
	prevHash, err := c.readExact(HashSize)
	if err != nil {
		return nil, 0, wrapErr(CategoryBlock, KindBasicInfoParse, "previous_hash", err)
	}
	heightFixed, err := c.readExact(32)
	if err != nil {
		return nil, 0, wrapErr(CategoryBlock, KindBasicInfoParse, "height", err)
	}
	difficulty, err := c.readExact(32)
	if err != nil {
		return nil, 0, wrapErr(CategoryBlock, KindBasicInfoParse, "difficulty", err)
	}
	founder, err := c.readExact(AddressSize)
	if err != nil {
		return nil, 0, wrapErr(CategoryBlock, KindBasicInfoParse, "founder", err)
	}

	info := &BasicInfo{
		Timestamp: timestamp,
		Pow:       pow,
		Height:    new(big.Int).SetBytes(heightFixed),
	}
	copy(info.PreviousHash[:], prevHash)
	copy(info.Difficulty[:], difficulty)
	copy(info.Founder[:], founder)
	return info, c.pos, nil
}

// Block is the common surface implemented by every block variant (spec
// §4.D).
type Block interface {
	Dump() ([]byte, error)
	Hash() ([32]byte, error)
	Info() *BasicInfo
	Validate(prev Block) error
}

// validateBasic implements the shared rule of spec §4.D Validate: height =
// prev.height+1, previous_hash = hash(prev), PoW holds against prev's
// difficulty, timestamp is monotonic non-decreasing.
func validateBasic(b Block, prev Block) error {
	info := b.Info()
	prevInfo := prev.Info()

	wantHeight := new(big.Int).Add(prevInfo.Height, big.NewInt(1))
	if info.Height.Cmp(wantHeight) != 0 {
		return newErr(CategoryBlock, KindTxBlockParse, "height mismatch")
	}

	prevHash, err := prev.Hash()
	if err != nil {
		return wrapErr(CategoryBlock, KindTxBlockParse, "hashing previous block", err)
	}
	if info.PreviousHash != prevHash {
		return newErr(CategoryBlock, KindTxBlockParse, "previous_hash mismatch")
	}

	if !CheckPow(info.PreviousHash, prevInfo.Difficulty, info.Pow) {
		return newErr(CategoryBlock, KindTxBlockParse, "pow invalid against previous difficulty")
	}

	if info.Timestamp < prevInfo.Timestamp {
		return newErr(CategoryBlock, KindTxBlockParse, "timestamp not monotonic")
	}
	return nil
}

// TransactionBlock carries a fee and an ordered list of transaction
// hashes committed by a Merkle root (spec §3).
type TransactionBlock struct {
	DefaultInfo     BasicInfo
	Fee             *big.Int
	MerkleTreeRoot  [32]byte
	Transactions    [][32]byte
}

func (t *TransactionBlock) Info() *BasicInfo { return &t.DefaultInfo }

// Dump writes header(1) ‖ merkle_root(32) ‖ BasicInfo ‖ dump(fee) ‖
// tx_count_u16_be ‖ tx_count × (entry_size_u32_be ‖ entry), per spec §4.D,
// where each entry is a 32-byte transaction hash (entry_size is always 32).
func (t *TransactionBlock) Dump() ([]byte, error) {
	if len(t.Transactions) > MaxTransactionsPerBlock {
		return nil, newErr(CategoryBlock, KindTxBlockDump, "too many transactions")
	}
	var buf []byte
	buf = append(buf, HeaderTransactionBlock)
	buf = append(buf, t.MerkleTreeRoot[:]...)
	infoBytes, err := t.DefaultInfo.Dump()
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindTxBlockDump, "default_info", err)
	}
	buf = append(buf, infoBytes...)
	buf, err = DumpU256(t.Fee, buf)
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindTxBlockDump, "fee", err)
	}
	buf = appendU16BE(buf, uint16(len(t.Transactions)))
	for _, h := range t.Transactions {
		buf = appendU32BE(buf, uint32(HashSize))
		buf = append(buf, h[:]...)
	}
	return buf, nil
}

func ParseTransactionBlockBody(data []byte) (*TransactionBlock, error) {
	c := newCursor(data)
	merkleRoot, err := c.readExact(HashSize)
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindTxBlockParse, "merkle_root", err)
	}
	info, consumed, err := ParseBasicInfo(c.b[c.pos:])
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindTxBlockParse, "default_info", err)
	}
	c.pos += consumed
	fee, consumed, err := LoadU256(c.b[c.pos:])
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindTxBlockParse, "fee", err)
	}
	c.pos += consumed
	txCount, err := c.readU16BE()
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindTxBlockParse, "tx_count", err)
	}
	txs := make([][32]byte, 0, txCount)
	for i := 0; i < int(txCount); i++ {
		size, err := c.readU32BE()
		if err != nil {
			return nil, wrapErr(CategoryBlock, KindTxBlockParse, "tx_size", err)
		}
		body, err := c.readExact(int(size))
		if err != nil {
			return nil, wrapErr(CategoryBlock, KindTxBlockParse, "tx_dump", err)
		}
		if size != HashSize {
			return nil, newErr(CategoryBlock, KindTxBlockParse, "transaction entry is not a 32-byte hash")
		}
		var h [32]byte
		copy(h[:], body)
		txs = append(txs, h)
	}

	tb := &TransactionBlock{DefaultInfo: *info, Fee: fee, Transactions: txs}
	copy(tb.MerkleTreeRoot[:], merkleRoot)
	return tb, nil
}

func (t *TransactionBlock) Hash() ([32]byte, error) {
	return dumpAndHash(t)
}

func (t *TransactionBlock) Validate(prev Block) error {
	return validateBasic(t, prev)
}

// DerivativeBlock references the main-chain transaction that paid for its
// mining (spec §3).
type DerivativeBlock struct {
	DefaultInfo        BasicInfo
	PaymentTransaction [32]byte
}

func (d *DerivativeBlock) Info() *BasicInfo { return &d.DefaultInfo }

func (d *DerivativeBlock) Dump() ([]byte, error) {
	var buf []byte
	buf = append(buf, HeaderDerivativeBlock)
	infoBytes, err := d.DefaultInfo.Dump()
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindDerivBlockDump, "default_info", err)
	}
	buf = append(buf, infoBytes...)
	buf = append(buf, d.PaymentTransaction[:]...)
	return buf, nil
}

func ParseDerivativeBlockBody(data []byte) (*DerivativeBlock, error) {
	c := newCursor(data)
	info, consumed, err := ParseBasicInfo(c.b[c.pos:])
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindDerivBlockParse, "default_info", err)
	}
	c.pos += consumed
	payment, err := c.readExact(HashSize)
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindDerivBlockParse, "payment_transaction", err)
	}
	db := &DerivativeBlock{DefaultInfo: *info}
	copy(db.PaymentTransaction[:], payment)
	return db, nil
}

func (d *DerivativeBlock) Hash() ([32]byte, error) {
	return dumpAndHash(d)
}

func (d *DerivativeBlock) Validate(prev Block) error {
	return validateBasic(d, prev)
}

// SummarizeBlock marks an epoch boundary; it carries only a Merkle root
// over the closing epoch's transactions (spec §3).
type SummarizeBlock struct {
	DefaultInfo    BasicInfo
	MerkleTreeRoot [32]byte
}

func (s *SummarizeBlock) Info() *BasicInfo { return &s.DefaultInfo }

func (s *SummarizeBlock) dumpBody() ([]byte, error) {
	infoBytes, err := s.DefaultInfo.Dump()
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindSummarizeDump, "default_info", err)
	}
	var buf []byte
	buf = append(buf, infoBytes...)
	buf = append(buf, s.MerkleTreeRoot[:]...)
	return buf, nil
}

func (s *SummarizeBlock) Dump() ([]byte, error) {
	body, err := s.dumpBody()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+len(body))
	buf = append(buf, HeaderSummarizeBlock)
	buf = append(buf, body...)
	return buf, nil
}

func parseSummarizeBlockBody(data []byte) (*SummarizeBlock, error) {
	c := newCursor(data)
	info, consumed, err := ParseBasicInfo(c.b[c.pos:])
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindSummarizeParse, "default_info", err)
	}
	c.pos += consumed
	root, err := c.readExact(HashSize)
	if err != nil {
		return nil, wrapErr(CategoryBlock, KindSummarizeParse, "merkle_root", err)
	}
	sb := &SummarizeBlock{DefaultInfo: *info}
	copy(sb.MerkleTreeRoot[:], root)
	return sb, nil
}

func ParseSummarizeBlockBody(data []byte) (*SummarizeBlock, error) {
	return parseSummarizeBlockBody(data)
}

func (s *SummarizeBlock) Hash() ([32]byte, error) {
	return dumpAndHash(s)
}

func (s *SummarizeBlock) Validate(prev Block) error {
	return validateBasic(s, prev)
}

// GenesisBlock is the chain-bootstrap block kind (header byte 5),
// supplemented from original_source/: it wraps a SummarizeBlock body so a
// freshly initialized chain's height-0 block parses back through the same
// Block sum type as every other height (SPEC_FULL.md §D.4).
type GenesisBlock struct {
	Body SummarizeBlock
}

func (g *GenesisBlock) Info() *BasicInfo { return &g.Body.DefaultInfo }

func (g *GenesisBlock) Dump() ([]byte, error) {
	body, err := g.Body.dumpBody()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+len(body))
	buf = append(buf, HeaderGenesisBlock)
	buf = append(buf, body...)
	return buf, nil
}

func ParseGenesisBlockBody(data []byte) (*GenesisBlock, error) {
	body, err := parseSummarizeBlockBody(data)
	if err != nil {
		return nil, err
	}
	return &GenesisBlock{Body: *body}, nil
}

func (g *GenesisBlock) Hash() ([32]byte, error) {
	return dumpAndHash(g)
}

// Validate is a no-op for genesis blocks — there is no prior block to
// check against.
func (g *GenesisBlock) Validate(prev Block) error {
	return nil
}

// TokenBlock is a reserved, unimplemented variant (spec §4.D): parsing it
// returns NotImplemented, and Dump must never be called.
type TokenBlock struct{}

func (TokenBlock) Info() *BasicInfo { return &BasicInfo{Height: new(big.Int), Pow: new(big.Int)} }

func (TokenBlock) Dump() ([]byte, error) {
	return nil, newErr(CategoryBlock, KindNotImplemented, "token block dump must never be called")
}

func (TokenBlock) Hash() ([32]byte, error) {
	return [32]byte{}, newErr(CategoryBlock, KindNotImplemented, "token")
}

func (TokenBlock) Validate(prev Block) error {
	return newErr(CategoryBlock, KindNotImplemented, "token")
}

func dumpAndHash(b Block) ([32]byte, error) {
	data, err := b.Dump()
	if err != nil {
		return [32]byte{}, err
	}
	return Hash(data), nil
}

// ParseBlock dispatches on the leading header byte and parses the
// remainder through the matching variant. Unknown headers fail with
// WrongHeader (spec §3).
func ParseBlock(data []byte) (Block, error) {
	if len(data) < 1 {
		return nil, newErr(CategoryBlock, KindWrongHeader, "empty block")
	}
	header := data[0]
	body := data[1:]
	switch header {
	case HeaderToken:
		return nil, newErr(CategoryBlock, KindNotImplemented, "token block")
	case HeaderTransactionBlock:
		return ParseTransactionBlockBody(body)
	case HeaderDerivativeBlock:
		return ParseDerivativeBlockBody(body)
	case HeaderSummarizeBlock:
		return ParseSummarizeBlockBody(body)
	case HeaderGenesisBlock:
		return ParseGenesisBlockBody(body)
	default:
		return nil, newErr(CategoryBlock, KindWrongHeader, "unknown block header byte")
	}
}

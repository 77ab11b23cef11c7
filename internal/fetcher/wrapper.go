package fetcher

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const (
	wrapperABIJSON = `[{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"_tokenIDToCatID","outputs":[{"internalType":"bytes5","name":"","type":"bytes5"}],"stateMutability":"view","type":"function"}]`
)

var (
	wrapperABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(wrapperABIJSON))
	if err != nil {
		panic("failed to parse wrapper ABI: " + err.Error())
	}
	wrapperABI = parsed
}

// WrapperOptions parameterise the on-chain fetcher.
type WrapperOptions struct {
	RPCURL          string
	ContractAddress string
	Timeout         time.Duration
}

// Wrapper reads the old-wrapper contract via Ethereum RPC to map a wrapped
// token id back to its canonical cat id.
type Wrapper struct {
	opts      WrapperOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewWrapper builds a new wrapper contract fetcher.
func NewWrapper(opts WrapperOptions, logger zerolog.Logger) *Wrapper {
	return &Wrapper{opts: opts, logger: logger.With().Str("component", "wrapper_fetcher").Logger()}
}

// ResolveCatID calls _tokenIDToCatID and returns the hex cat id.
func (w *Wrapper) ResolveCatID(ctx context.Context, wrapperTokenID uint64) (string, error) {
	if w.opts.RPCURL == "" {
		return "", errors.New("ethereum rpc url not configured")
	}
	if w.opts.ContractAddress == "" {
		return "", errors.New("wrapper contract address not configured")
	}

	timeout := w.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := w.getClient(ctx)
	if err != nil {
		return "", err
	}

	addr := common.HexToAddress(w.opts.ContractAddress)
	tokenID := new(big.Int).SetUint64(wrapperTokenID)

	payload, err := wrapperABI.Pack("_tokenIDToCatID", tokenID)
	if err != nil {
		return "", err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return "", err
	}

	outputs, err := wrapperABI.Unpack("_tokenIDToCatID", res)
	if err != nil {
		return "", err
	}

	if len(outputs) != 1 {
		return "", errors.New("unexpected _tokenIDToCatID response")
	}

	catID, ok := outputs[0].([5]byte)
	if !ok {
		return "", errors.New("failed to decode _tokenIDToCatID output")
	}

	return "0x" + hex.EncodeToString(catID[:]), nil
}

func (w *Wrapper) getClient(ctx context.Context) (*ethclient.Client, error) {
	w.clientMux.Lock()
	defer w.clientMux.Unlock()

	if w.client != nil {
		return w.client, nil
	}

	client, err := ethclient.DialContext(ctx, w.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	w.client = client
	return client, nil
}

var _ CatIDResolver = (*Wrapper)(nil)

package rpcclient

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	. "github.com/alexdcox/algofi-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func NewRpcClient(hostPort string) (client *RpcClient, err error) {
	if hostPort == "" {
		err = errors.Wrap(ErrConfiguration, "rpc host/port not configured")
		return
	}
	client = &RpcClient{
		HostPort: hostPort,
		Http:     http.DefaultClient,
	}
	return
}

type RpcClient struct {
	HostPort string
	Http     *http.Client
}

func (c *RpcClient) req(ctx context.Context, method string, path string, body io.Reader) (rsp *http.Response, out []byte, err error) {
	req, err2 := http.NewRequestWithContext(ctx, method, c.HostPort+path, body)
	if err2 != nil {
		err = errors.WithStack(err2)
		return
	}

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err = c.Http.Do(req)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	defer rsp.Body.Close()

	out, err = io.ReadAll(rsp.Body)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	if rsp.Status[0] != '2' {
		errRsp := &RpcError{}
		if decodeErr := json.Unmarshal(out, errRsp); decodeErr == nil && errRsp.Err != "" {
			err = errRsp

			if stdErr := errRsp.StdErr(); stdErr != nil {
				err = stdErr
			}

			return
		}

		err = errors.Wrapf(ErrRpcFailed, "rpc response code %d with body %s", rsp.StatusCode, string(out))
		return
	}

	return
}

func (c *RpcClient) reqUnmarshal(ctx context.Context, method string, path string, body io.Reader, target any) (err error) {
	_, rspBody, err := c.req(ctx, method, path, body)
	if err != nil {
		return
	}

	err = json.Unmarshal(rspBody, target)
	if err != nil {
		err = errors.Wrapf(err, "unable to unmarshal body: %s", string(rspBody))
		return
	}

	return
}

func (c *RpcClient) get(ctx context.Context, path string, target any) (err error) {
	return c.reqUnmarshal(ctx, http.MethodGet, path, nil, target)
}

func (c *RpcClient) post(ctx context.Context, path string, in any, target any) (err error) {
	jsn, err := json.Marshal(in)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	return c.reqUnmarshal(ctx, http.MethodPost, path, bytes.NewReader(jsn), target)
}

type GetStatusOut struct {
	Network          Network                    `json:"network"`
	Round            uint64                     `json:"round"`
	ManagerAppID     uint64                     `json:"managerAppId"`
	Markets          []string                   `json:"markets"`
	StakingContracts []string                   `json:"stakingContracts"`
	Prices           map[string]decimal.Decimal `json:"prices"`
	PendingGroups    int                        `json:"pendingGroups"`
	History          RoundSpan                  `json:"history"`
}

// RoundSpan is the range of recorded manager snapshots, zero when empty.
type RoundSpan struct {
	First uint64 `json:"first"`
	Last  uint64 `json:"last"`
}

func (c *RpcClient) GetStatus(ctx context.Context) (out *GetStatusOut, err error) {
	out = &GetStatusOut{}
	err = c.get(ctx, "/status", out)
	return
}

type MarketOut struct {
	Symbol  string       `json:"symbol"`
	AppID   uint64       `json:"appId"`
	Address string       `json:"address"`
	Round   uint64       `json:"round,omitempty"`
	State   *MarketState `json:"state"`
}

func (c *RpcClient) GetMarkets(ctx context.Context) (out []MarketOut, err error) {
	out = []MarketOut{}
	err = c.get(ctx, "/markets", &out)
	return
}

func (c *RpcClient) GetMarket(ctx context.Context, symbol string) (out *MarketOut, err error) {
	out = &MarketOut{}
	err = c.get(ctx, fmt.Sprintf("/markets/%s", url.PathEscape(symbol)), out)
	return
}

// GetMarketAt returns the market as recorded at or before round.
func (c *RpcClient) GetMarketAt(ctx context.Context, symbol string, round uint64) (out *MarketOut, err error) {
	out = &MarketOut{}
	err = c.get(ctx, fmt.Sprintf("/markets/%s/history/%d", url.PathEscape(symbol), round), out)
	return
}

func (c *RpcClient) GetUserState(ctx context.Context, address string) (out *UserState, err error) {
	out = &UserState{}
	err = c.get(ctx, fmt.Sprintf("/user/%s", address), out)
	return
}

func (c *RpcClient) GetRewards(ctx context.Context, address string) (out *RewardsResult, err error) {
	out = &RewardsResult{}
	err = c.get(ctx, fmt.Sprintf("/user/%s/rewards", address), out)
	return
}

func (c *RpcClient) GetStakingState(ctx context.Context, name, address string) (out *StakingStorageState, err error) {
	out = &StakingStorageState{}
	err = c.get(ctx, fmt.Sprintf("/staking/%s/%s", url.PathEscape(name), address), out)
	return
}

type Op string

const (
	OpMint                       Op = "mint"
	OpMintToCollateral           Op = "mint-to-collateral"
	OpBurn                       Op = "burn"
	OpAddCollateral              Op = "add-collateral"
	OpRemoveCollateral           Op = "remove-collateral"
	OpRemoveCollateralUnderlying Op = "remove-collateral-underlying"
	OpBorrow                     Op = "borrow"
	OpRepayBorrow                Op = "repay-borrow"
	OpLiquidate                  Op = "liquidate"
	OpClaimRewards               Op = "claim-rewards"
	OpManagerOptin               Op = "manager-optin"
	OpMarketOptin                Op = "market-optin"
	OpAssetOptin                 Op = "asset-optin"
	OpPayment                    Op = "payment"
	OpStakingOptin               Op = "staking-optin"
	OpStake                      Op = "stake"
	OpUnstake                    Op = "unstake"
	OpClaimStakingRewards        Op = "claim-staking-rewards"
)

var Ops = []Op{
	OpMint,
	OpMintToCollateral,
	OpBurn,
	OpAddCollateral,
	OpRemoveCollateral,
	OpRemoveCollateralUnderlying,
	OpBorrow,
	OpRepayBorrow,
	OpLiquidate,
	OpClaimRewards,
	OpManagerOptin,
	OpMarketOptin,
	OpAssetOptin,
	OpPayment,
	OpStakingOptin,
	OpStake,
	OpUnstake,
	OpClaimStakingRewards,
}

func (o Op) Valid() bool {
	for _, op := range Ops {
		if o == op {
			return true
		}
	}
	return false
}

// PrepareIn carries the arguments of every operation; each one reads only
// the fields it needs.
type PrepareIn struct {
	Address          string `json:"address"`
	Symbol           string `json:"symbol,omitempty"`
	Amount           uint64 `json:"amount,omitempty"`
	CollateralSymbol string `json:"collateralSymbol,omitempty"`
	TargetStorage    string `json:"targetStorage,omitempty"`
	StorageAddress   string `json:"storageAddress,omitempty"`
	AssetID          uint64 `json:"assetId,omitempty"`
	Receiver         string `json:"receiver,omitempty"`
	Contract         string `json:"contract,omitempty"`
}

// PrepareOut holds an unsigned group. Transactions are msgpack encoded.
type PrepareOut struct {
	ID           string   `json:"id"`
	GroupID      []byte   `json:"groupId"`
	Transactions [][]byte `json:"transactions"`
}

// Group decodes the prepared transactions and checks their group id.
func (o *PrepareOut) Group() (group *TransactionGroup, err error) {
	if o == nil {
		return nil, errors.New("prepare out is nil")
	}
	return DecodeTransactionGroup(o.Transactions)
}

// Sign signs every member with the key of its sender and returns the
// submission for this prepared group.
func (o *PrepareOut) Sign(keys ...ed25519.PrivateKey) (in *SubmitIn, err error) {
	group, err := o.Group()
	if err != nil {
		return
	}
	if err = group.SignBySender(keys...); err != nil {
		return
	}
	return &SubmitIn{ID: o.ID, Signed: group.Signed}, nil
}

func (c *RpcClient) Prepare(ctx context.Context, operation Op, in *PrepareIn) (out *PrepareOut, err error) {
	if !operation.Valid() {
		err = errors.Wrapf(ErrUnsupportedOperation, "'%s'", operation)
		return
	}
	out = &PrepareOut{}
	err = c.post(ctx, fmt.Sprintf("/tx/prepare/%s", operation), in, out)
	return
}

// SubmitIn carries one signed blob per group member. ID, when set, ties
// the submission to a group prepared by the service.
type SubmitIn struct {
	ID     string   `json:"id,omitempty"`
	Signed [][]byte `json:"signed"`
	Wait   bool     `json:"wait"`
}

type SubmitOut struct {
	TxID string `json:"txId"`
}

func (c *RpcClient) Submit(ctx context.Context, in *SubmitIn) (out *SubmitOut, err error) {
	out = &SubmitOut{}
	err = c.post(ctx, "/tx/submit", in, out)
	return
}

type SnapshotOut struct {
	Round uint64 `json:"round"`
}

func (c *RpcClient) Snapshot(ctx context.Context) (out *SnapshotOut, err error) {
	out = &SnapshotOut{}
	err = c.post(ctx, "/snapshot", struct{}{}, out)
	return
}

type RpcError struct {
	Err     string `json:"error"`
	Details string `json:"details"`
}

func (r *RpcError) Error() string {
	return r.Err
}

func (r *RpcError) StdErr() error {
	for _, a := range AllErrors {
		if r.Err == a.Error() {
			return errors.Wrap(a, r.Details)
		}
	}
	return nil
}

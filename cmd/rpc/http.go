package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	. "github.com/alexdcox/algofi-go"
	"github.com/alexdcox/algofi-go/rpcclient"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const requestIDHeader = "X-Request-Id"

func NewHttpRpcServer(config *_config, db StateDatabase, client *Client) (server *HttpRpcServer, err error) {
	if client == nil {
		err = errors.Wrap(ErrConfiguration, "http/rpc server needs a client")
		return
	}

	server = &HttpRpcServer{
		config: config,
		client: client,
		db:     db,
		groups: newPreparedGroups(preparedGroupTTL, time.Now),
	}
	server.metrics = newRpcMetrics(server.groups.Len)
	server.app = server.routes()

	return
}

type HttpRpcServer struct {
	app     *fiber.App
	client  *Client
	config  *_config
	db      StateDatabase
	groups  *preparedGroups
	metrics *rpcMetrics
}

func (s *HttpRpcServer) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDHeader, requestID)

		rsp := c.Next()

		status := c.Response().StatusCode()
		s.metrics.observe(c.Route().Path, c.Method(), status, time.Since(start))
		log.Info().Msgf("http response: [%d] %s - %s %s (%s)", status, c.IP(), c.Method(), c.Path(), requestID)
		return rsp
	})

	app.Get("/status", s.getStatus)
	app.Get("/markets", s.getMarkets)
	app.Get("/markets/:symbol", s.getMarket)
	app.Get("/markets/:symbol/history/:round", s.getMarketHistory)
	app.Get("/user/:address", s.getUserState)
	app.Get("/user/:address/rewards", s.getUserRewards)
	app.Get("/staking/:name/:address", s.getStakingState)
	app.Post("/tx/prepare/:operation", s.postPrepare)
	app.Post("/tx/submit", s.postSubmit)
	app.Post("/snapshot", s.postSnapshot)
	app.Get("/metrics", adaptor.HTTPHandler(s.metrics.handler()))

	return app
}

func (s *HttpRpcServer) Start() (err error) {
	log.Info().Msgf("http/rpc server listening on %s", s.config.RpcHostPort)

	err = errors.WithStack(s.app.Listen(s.config.RpcHostPort))

	return
}

func (s *HttpRpcServer) Stop() (err error) {
	return errors.WithStack(s.app.Shutdown())
}

func (s *HttpRpcServer) errorResponse(c *fiber.Ctx, err error) error {
	statusCode := http.StatusInternalServerError

	reportedErr := err

	for _, match := range []struct {
		err    error
		status int
	}{
		{ErrUnsupportedAsset, http.StatusNotFound},
		{ErrNoStorageAddress, http.StatusNotFound},
		{ErrStateNotFound, http.StatusNotFound},
		{ErrGroupNotFound, http.StatusNotFound},
		{ErrConfiguration, http.StatusBadRequest},
		{ErrUnsupportedOperation, http.StatusBadRequest},
		{ErrArgumentCountMismatch, http.StatusBadRequest},
		{ErrInsufficientBalance, http.StatusBadRequest},
		{ErrSignerMismatch, http.StatusBadRequest},
		{ErrNotSigned, http.StatusBadRequest},
		{ErrInvalidNetwork, http.StatusBadRequest},
		{ErrStateRead, http.StatusInternalServerError},
		{ErrSubmissionFailed, http.StatusInternalServerError},
		{ErrConfirmationTimeout, http.StatusInternalServerError},
	} {
		if errors.Is(err, match.err) {
			reportedErr = match.err
			statusCode = match.status
			break
		}
	}

	if statusCode == http.StatusInternalServerError {
		log.Error().Msgf("%+v", err)
	}

	return c.Status(statusCode).JSON(map[string]any{
		"error":   reportedErr.Error(),
		"details": fmt.Sprintf("%+v", err),
	})
}

func (s *HttpRpcServer) unmarshalJson(c *fiber.Ctx, target any) (err error) {
	if c.Get("Content-Type") != "application/json" {
		return errors.Wrap(ErrConfiguration, "expected an application/json body")
	}

	if err = c.BodyParser(target); err != nil {
		err = errors.Wrapf(ErrConfiguration, "invalid body: %v", err)
	}
	return
}

func validAddress(address string) (err error) {
	if _, err = types.DecodeAddress(address); err != nil {
		err = errors.Wrapf(ErrConfiguration, "invalid address '%s': %v", address, err)
	}
	return
}

func (s *HttpRpcServer) getStatus(c *fiber.Ctx) error {
	round, err := s.client.Ledger().Status(c.UserContext())
	if err != nil {
		return s.errorResponse(c, errors.Wrapf(ErrStateRead, "status: %v", err))
	}

	first, last, err := s.db.RoundSpan(s.client.Manager().AppID())
	if err != nil {
		return s.errorResponse(c, err)
	}

	staking := make([]string, 0, len(s.client.StakingContracts()))
	for name := range s.client.StakingContracts() {
		staking = append(staking, name)
	}
	sort.Strings(staking)

	return c.JSON(rpcclient.GetStatusOut{
		Network:          s.client.Registry().Network,
		Round:            round,
		ManagerAppID:     s.client.Manager().AppID(),
		Markets:          s.client.Registry().ActiveSymbols(),
		StakingContracts: staking,
		Prices:           s.client.Prices(),
		PendingGroups:    s.groups.Len(),
		History:          rpcclient.RoundSpan{First: first, Last: last},
	})
}

func marketOut(symbol string, market *Market, round uint64, state *MarketState) rpcclient.MarketOut {
	return rpcclient.MarketOut{
		Symbol:  symbol,
		AppID:   market.AppID(),
		Address: market.Address(),
		Round:   round,
		State:   state,
	}
}

func (s *HttpRpcServer) getMarkets(c *fiber.Ctx) error {
	out := []rpcclient.MarketOut{}
	for _, symbol := range s.client.Registry().ActiveSymbols() {
		market, err := s.client.Market(symbol)
		if err != nil {
			return s.errorResponse(c, err)
		}
		out = append(out, marketOut(symbol, market, 0, market.State()))
	}
	return c.JSON(out)
}

func (s *HttpRpcServer) getMarket(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	market, err := s.client.Market(symbol)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(marketOut(symbol, market, 0, market.State()))
}

func (s *HttpRpcServer) getMarketHistory(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	market, err := s.client.Market(symbol)
	if err != nil {
		return s.errorResponse(c, err)
	}

	round, err := strconv.ParseUint(c.Params("round"), 10, 64)
	if err != nil {
		return s.errorResponse(c, errors.Wrapf(ErrConfiguration, "invalid round '%s'", c.Params("round")))
	}

	state, err := market.MarketStateAt(c.UserContext(), round)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(marketOut(symbol, market, round, state))
}

func (s *HttpRpcServer) getUserState(c *fiber.Ctx) error {
	address := c.Params("address")
	if err := validAddress(address); err != nil {
		return s.errorResponse(c, err)
	}

	state, err := s.client.UserState(c.UserContext(), address)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(state)
}

func (s *HttpRpcServer) getUserRewards(c *fiber.Ctx) error {
	address := c.Params("address")
	if err := validAddress(address); err != nil {
		return s.errorResponse(c, err)
	}

	rewards, err := s.client.UserUnrealizedRewards(c.UserContext(), address)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(rewards)
}

func (s *HttpRpcServer) getStakingState(c *fiber.Ctx) error {
	address := c.Params("address")
	if err := validAddress(address); err != nil {
		return s.errorResponse(c, err)
	}

	state, err := s.client.UserStakingContractState(c.UserContext(), c.Params("name"), address)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(state)
}

func (s *HttpRpcServer) postPrepare(c *fiber.Ctx) error {
	operation := rpcclient.Op(c.Params("operation"))
	if !operation.Valid() {
		return s.errorResponse(c, errors.Wrapf(ErrUnsupportedOperation, "'%s'", operation))
	}

	body := gjson.ParseBytes(c.Body())
	if !body.IsObject() {
		return s.errorResponse(c, errors.Wrap(ErrConfiguration, "expected a json object body"))
	}

	address := body.Get("address").String()
	if err := validAddress(address); err != nil {
		return s.errorResponse(c, err)
	}

	group, err := s.prepare(c, operation, address, body)
	if err != nil {
		return s.errorResponse(c, err)
	}

	id := s.groups.Put(group)
	gid := group.GroupID()

	log.Debug().Msgf("prepared %s group %s of %d for %s", operation, id, group.Len(), address)

	return c.JSON(rpcclient.PrepareOut{
		ID:           id,
		GroupID:      gid[:],
		Transactions: group.EncodeUnsigned(),
	})
}

func (s *HttpRpcServer) prepare(c *fiber.Ctx, operation rpcclient.Op, address string, body gjson.Result) (*TransactionGroup, error) {
	ctx := c.UserContext()
	symbol := body.Get("symbol").String()
	amount := body.Get("amount").Uint()
	contract := body.Get("contract").String()

	switch operation {
	case rpcclient.OpMint:
		return s.client.PrepareMintTransactions(ctx, symbol, amount, address)
	case rpcclient.OpMintToCollateral:
		return s.client.PrepareMintToCollateralTransactions(ctx, symbol, amount, address)
	case rpcclient.OpBurn:
		return s.client.PrepareBurnTransactions(ctx, symbol, amount, address)
	case rpcclient.OpAddCollateral:
		return s.client.PrepareAddCollateralTransactions(ctx, symbol, amount, address)
	case rpcclient.OpRemoveCollateral:
		return s.client.PrepareRemoveCollateralTransactions(ctx, symbol, amount, address)
	case rpcclient.OpRemoveCollateralUnderlying:
		return s.client.PrepareRemoveCollateralUnderlyingTransactions(ctx, symbol, amount, address)
	case rpcclient.OpBorrow:
		return s.client.PrepareBorrowTransactions(ctx, symbol, amount, address)
	case rpcclient.OpRepayBorrow:
		return s.client.PrepareRepayBorrowTransactions(ctx, symbol, amount, address)
	case rpcclient.OpLiquidate:
		return s.client.PrepareLiquidateTransactions(ctx, body.Get("targetStorage").String(), symbol, amount, body.Get("collateralSymbol").String(), address)
	case rpcclient.OpClaimRewards:
		return s.client.PrepareClaimRewardsTransactions(ctx, address)
	case rpcclient.OpManagerOptin:
		return s.client.PrepareManagerOptinTransactions(ctx, body.Get("storageAddress").String(), address)
	case rpcclient.OpMarketOptin:
		return s.client.PrepareMarketOptinTransactions(ctx, symbol, address)
	case rpcclient.OpAssetOptin:
		return s.client.PrepareAssetOptinTransactions(ctx, body.Get("assetId").Uint(), address)
	case rpcclient.OpPayment:
		return s.client.PreparePaymentTransaction(ctx, body.Get("receiver").String(), amount, address)
	case rpcclient.OpStakingOptin:
		return s.client.PrepareStakingContractOptinTransactions(ctx, contract, body.Get("storageAddress").String(), address)
	case rpcclient.OpStake:
		return s.client.PrepareStakeTransactions(ctx, contract, amount, address)
	case rpcclient.OpUnstake:
		return s.client.PrepareUnstakeTransactions(ctx, contract, amount, address)
	case rpcclient.OpClaimStakingRewards:
		return s.client.PrepareClaimStakingRewardsTransactions(ctx, contract, address)
	}

	return nil, errors.Wrapf(ErrUnsupportedOperation, "'%s'", operation)
}

// checkSigned makes sure each signed blob carries the prepared member at the
// same position.
func checkSigned(group *TransactionGroup, signed [][]byte) (err error) {
	if len(signed) != group.Len() {
		return errors.Wrapf(ErrArgumentCountMismatch, "%d signed transactions for a group of %d", len(signed), group.Len())
	}

	for i, raw := range signed {
		var stx types.SignedTxn
		if err = msgpack.Decode(raw, &stx); err != nil {
			return errors.Wrapf(ErrConfiguration, "signed transaction %d: %v", i, err)
		}
		if crypto.GetTxID(stx.Txn) != crypto.GetTxID(group.Transactions[i]) {
			return errors.Wrapf(ErrConfiguration, "signed transaction %d does not match the prepared group", i)
		}
	}
	return
}

func (s *HttpRpcServer) postSubmit(c *fiber.Ctx) error {
	in := &rpcclient.SubmitIn{}
	if err := s.unmarshalJson(c, in); err != nil {
		return s.errorResponse(c, err)
	}

	if len(in.Signed) == 0 {
		return s.errorResponse(c, errors.Wrap(ErrNotSigned, "no signed transactions"))
	}

	if in.ID != "" {
		group, ok := s.groups.Get(in.ID)
		if !ok {
			return s.errorResponse(c, errors.Wrapf(ErrGroupNotFound, "'%s'", in.ID))
		}
		if err := checkSigned(group, in.Signed); err != nil {
			return s.errorResponse(c, err)
		}
	}

	txid, err := s.client.Submit(c.UserContext(), bytes.Join(in.Signed, nil), in.Wait)
	s.metrics.submitted(err)
	if err != nil {
		return s.errorResponse(c, err)
	}

	if in.ID != "" {
		s.groups.Delete(in.ID)
	}

	return c.JSON(rpcclient.SubmitOut{TxID: txid})
}

func (s *HttpRpcServer) postSnapshot(c *fiber.Ctx) error {
	if err := s.client.Refresh(c.UserContext()); err != nil {
		return s.errorResponse(c, err)
	}

	round, err := s.client.RecordSnapshot(c.UserContext())
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(rpcclient.SnapshotOut{Round: round})
}

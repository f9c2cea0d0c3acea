package rpc

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/api/rpcerrors"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

// EthAPI serves the eth namespace. Every wallet call runs through the hooked wallet.
type EthAPI struct {
	s *api.Server
}

func (a *EthAPI) Accounts(ctx context.Context) ([]string, error) {
	var (
		result []string
		err    error
	)

	a.s.Wallet.GetAccounts(ctx, func(cbErr error, addresses []string) {
		result, err = addresses, cbErr
	})

	return result, toRPCError(err)
}

func (a *EthAPI) RequestAccounts(ctx context.Context) ([]string, error) {
	return a.Accounts(ctx)
}

func (a *EthAPI) ChainId() hexutil.Uint64 { //nolint:revive // served as eth_chainId
	return hexutil.Uint64(a.s.Provider.Options().NetworkID)
}

func (a *EthAPI) SignTransaction(ctx context.Context, tx subprovider.TxParams) (string, error) {
	if tx.From == "" {
		return "", rpcerrors.NewInvalidParams(errors.New("transaction lacks from"))
	}

	var (
		result string
		err    error
	)

	a.s.Wallet.SignTransaction(ctx, &tx, func(cbErr error, signed string) {
		result, err = signed, cbErr
	})

	return result, toRPCError(err)
}

// NetAPI serves the net namespace.
type NetAPI struct {
	s *api.Server
}

func (a *NetAPI) Version() string {
	return strconv.FormatUint(a.s.Provider.Options().NetworkID, 10)
}

// PersonalAPI serves the personal namespace.
type PersonalAPI struct {
	s *api.Server
}

// Sign takes [data, address] and an ignored password. The reversed order some
// dapps send is accepted when it is unambiguous.
func (a *PersonalAPI) Sign(ctx context.Context, data string, from string, _ *string) (string, error) {
	if common.IsHexAddress(data) && !common.IsHexAddress(from) {
		data, from = from, data
	}

	var (
		result string
		err    error
	)

	a.s.Wallet.SignPersonalMessage(ctx, &subprovider.MessageParams{From: from, Data: data}, func(cbErr error, signature string) {
		result, err = signature, cbErr
	})

	return result, toRPCError(err)
}

// toRPCError keeps nil untyped, the rpc server only checks err != nil.
func toRPCError(err error) error {
	if err == nil {
		return nil
	}

	return rpcerrors.FromError(err)
}

package rpc

import (
	"encoding/json"
	"time"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/storage/history"
)

// registerAllMethods wires every RPC method into the registry.
func (s *Server) registerAllMethods() {
	// Server methods
	s.registry.Register("ping", MethodFunc(s.handlePing))
	s.registry.Register("server_info", MethodFunc(s.handleServerInfo))

	// Instance methods
	s.registry.Register("deploy_instance", MethodFunc(s.handleDeployInstance))
	s.registry.Register("instances", MethodFunc(s.handleInstances))
	s.registry.Register("ledger_info", MethodFunc(s.handleLedgerInfo))

	// Custody methods
	s.registry.Register("balance_of", MethodFunc(s.handleBalanceOf))
	s.registry.Register("reserves", MethodFunc(s.handleReserves))
	s.registry.Register("deposit", MethodFunc(s.handleDeposit))
	s.registry.Register("transfer", MethodFunc(s.handleTransfer))
	s.registry.Register("withdraw", MethodFunc(s.handleWithdraw))

	// Flash-loan quote methods. Loans themselves run in process, not over
	// the wire; the callback cannot cross a network boundary atomically.
	s.registry.Register("max_flash_loan", MethodFunc(s.handleMaxFlashLoan))
	s.registry.Register("flash_fee", MethodFunc(s.handleFlashFee))

	s.registry.Register("loan_history", MethodFunc(s.handleLoanHistory))
	s.registry.Register("account_tx", MethodFunc(s.handleAccountTx))
}

func (s *Server) handlePing(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return map[string]interface{}{}, nil
}

func (s *Server) handleServerInfo(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	info := s.svc.Info()
	return map[string]interface{}{
		"info": map[string]interface{}{
			"build_version":  s.version,
			"instance_count": info.Instances,
			"operation_seq":  info.Seq,
			"uptime_seconds": int64(info.Uptime.Seconds()),
		},
	}, nil
}

type deployInstanceParams struct {
	Deployer     string `json:"deployer"`
	FeeRecipient string `json:"fee_recipient"`
	FeeRate      uint32 `json:"fee_rate"`
}

func (s *Server) handleDeployInstance(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p deployInstanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	deployer, rpcErr := parseAccountID("deployer", p.Deployer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient, rpcErr := parseAccountID("fee_recipient", p.FeeRecipient)
	if rpcErr != nil {
		return nil, rpcErr
	}

	id, err := s.svc.DeployInstance(deployer, recipient, amount.FeeRate(p.FeeRate))
	if err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{
		"instance": id.String(),
	}, nil
}

func (s *Server) handleInstances(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	ids := s.svc.Instances()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return map[string]interface{}{
		"instances": out,
	}, nil
}

type instanceParams struct {
	Instance string `json:"instance"`
}

func (s *Server) handleLedgerInfo(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p instanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}

	inst, err := s.svc.Instance(instanceID)
	if err != nil {
		return nil, WrapError(err)
	}

	_, reserves := inst.Snapshot()
	reserveMap := make(map[string]uint64, len(reserves))
	for assetID, qty := range reserves {
		reserveMap[assetID.String()] = uint64(qty)
	}

	return map[string]interface{}{
		"instance":      instanceID.String(),
		"fee_rate":      uint32(inst.FeeRate()),
		"fee_recipient": inst.FeeRecipient().String(),
		"reserves":      reserveMap,
	}, nil
}

type balanceOfParams struct {
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
	Account  string `json:"account"`
}

func (s *Server) handleBalanceOf(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p balanceOfParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := parseAccountID("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}

	inst, err := s.svc.Instance(instanceID)
	if err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{
		"instance": instanceID.String(),
		"asset":    assetID.String(),
		"account":  account.String(),
		"balance":  uint64(inst.BalanceOf(assetID, account)),
	}, nil
}

type reservesParams struct {
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
}

func (s *Server) handleReserves(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p reservesParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}

	inst, err := s.svc.Instance(instanceID)
	if err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{
		"instance": instanceID.String(),
		"asset":    assetID.String(),
		"reserves": uint64(inst.ReserveTotal(assetID)),
	}, nil
}

type depositParams struct {
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
	Account  string `json:"account"`
}

func (s *Server) handleDeposit(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p depositParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := parseAccountID("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}

	credited, err := s.svc.Deposit(instanceID, assetID, account)
	if err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{
		"credited": uint64(credited),
	}, nil
}

type transferParams struct {
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   uint64 `json:"amount"`
}

func (s *Server) handleTransfer(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p transferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := parseAccountID("from", p.From)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAccountID("to", p.To)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := s.svc.Transfer(instanceID, assetID, from, to, amount.Quantity(p.Amount)); err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{}, nil
}

type withdrawParams struct {
	Instance  string `json:"instance"`
	Asset     string `json:"asset"`
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func (s *Server) handleWithdraw(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p withdrawParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAccountID("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient := owner
	if p.Recipient != "" {
		recipient, rpcErr = parseAccountID("recipient", p.Recipient)
		if rpcErr != nil {
			return nil, rpcErr
		}
	}

	if err := s.svc.Withdraw(instanceID, assetID, owner, recipient, amount.Quantity(p.Amount)); err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{}, nil
}

type maxFlashLoanParams struct {
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
}

func (s *Server) handleMaxFlashLoan(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p maxFlashLoanParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}

	maxLoan, err := s.svc.MaxFlashLoan(instanceID, assetID)
	if err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{
		"max_flash_loan": uint64(maxLoan),
	}, nil
}

type flashFeeParams struct {
	Instance string `json:"instance"`
	Asset    string `json:"asset"`
	Amount   uint64 `json:"amount"`
}

func (s *Server) handleFlashFee(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p flashFeeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	instanceID, rpcErr := parseAccountID("instance", p.Instance)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetID, rpcErr := parseAssetID("asset", p.Asset)
	if rpcErr != nil {
		return nil, rpcErr
	}

	fee, err := s.svc.FlashFee(instanceID, assetID, amount.Quantity(p.Amount))
	if err != nil {
		return nil, WrapError(err)
	}
	return map[string]interface{}{
		"fee": uint64(fee),
	}, nil
}

type loanHistoryParams struct {
	Instance string `json:"instance,omitempty"`
	Borrower string `json:"borrower,omitempty"`
	Asset    string `json:"asset,omitempty"`
	MinSeq   uint64 `json:"min_seq,omitempty"`
	Limit    uint32 `json:"limit,omitempty"`
}

func (s *Server) handleLoanHistory(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p loanHistoryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	var q history.LoanQuery
	q.MinSeq = p.MinSeq
	q.Limit = p.Limit
	if p.Instance != "" {
		id, rpcErr := parseAccountID("instance", p.Instance)
		if rpcErr != nil {
			return nil, rpcErr
		}
		q.Instance = &id
	}
	if p.Borrower != "" {
		id, rpcErr := parseAccountID("borrower", p.Borrower)
		if rpcErr != nil {
			return nil, rpcErr
		}
		q.Borrower = &id
	}
	if p.Asset != "" {
		id, rpcErr := parseAssetID("asset", p.Asset)
		if rpcErr != nil {
			return nil, rpcErr
		}
		q.Asset = &id
	}

	loans, err := s.svc.LoanHistory(ctx.Context, q)
	if err != nil {
		return nil, WrapError(err)
	}
	rows := make([]map[string]interface{}, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, map[string]interface{}{
			"instance":   l.Instance.String(),
			"initiator":  l.Initiator.String(),
			"borrower":   l.Borrower.String(),
			"asset":      l.Asset.String(),
			"amount":     uint64(l.Amount),
			"fee":        uint64(l.Fee),
			"seq":        l.Seq,
			"settled_at": l.SettledAt.UTC().Format(time.RFC3339),
		})
	}
	return map[string]interface{}{
		"loans": rows,
	}, nil
}

type accountTxParams struct {
	Account string `json:"account"`
	Limit   uint32 `json:"limit,omitempty"`
}

func (s *Server) handleAccountTx(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p accountTxParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := parseAccountID("account", p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}

	transfers, err := s.svc.AccountTransfers(ctx.Context, account, p.Limit)
	if err != nil {
		return nil, WrapError(err)
	}
	rows := make([]map[string]interface{}, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, map[string]interface{}{
			"instance":    t.Instance.String(),
			"asset":       t.Asset.String(),
			"from":        t.From.String(),
			"to":          t.To.String(),
			"amount":      uint64(t.Amount),
			"seq":         t.Seq,
			"executed_at": t.ExecutedAt.UTC().Format(time.RFC3339),
		})
	}
	return map[string]interface{}{
		"account":   account.String(),
		"transfers": rows,
	}, nil
}

func decodeParams(params json.RawMessage, out interface{}) *RpcError {
	if params == nil {
		return RpcErrorInvalidParams("missing params")
	}
	if err := json.Unmarshal(params, out); err != nil {
		return RpcErrorInvalidParams(err.Error())
	}
	return nil
}

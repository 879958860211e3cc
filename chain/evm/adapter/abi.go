package adapter

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// HTLCABI is the interface of the HashedTimelockEther contract.
const HTLCABI = `[
  {"type":"function","name":"createHTLC","stateMutability":"payable",
   "inputs":[
     {"name":"receiver","type":"address"},
     {"name":"hashlock","type":"bytes32"},
     {"name":"timelock","type":"uint256"},
     {"name":"receiverChainId","type":"uint256"},
     {"name":"receiverChainAddress","type":"string"}],
   "outputs":[{"name":"contractId","type":"bytes32"}]},
  {"type":"function","name":"redeem","stateMutability":"nonpayable",
   "inputs":[{"name":"contractId","type":"bytes32"},{"name":"preimage","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"batchRedeem","stateMutability":"nonpayable",
   "inputs":[{"name":"contractIds","type":"bytes32[]"},{"name":"preimages","type":"bytes32[]"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"refund","stateMutability":"nonpayable",
   "inputs":[{"name":"contractId","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getContract","stateMutability":"view",
   "inputs":[{"name":"contractId","type":"bytes32"}],
   "outputs":[
     {"name":"sender","type":"address"},
     {"name":"receiver","type":"address"},
     {"name":"amount","type":"uint256"},
     {"name":"hashlock","type":"bytes32"},
     {"name":"timelock","type":"uint256"},
     {"name":"withdrawn","type":"bool"},
     {"name":"refunded","type":"bool"},
     {"name":"preimage","type":"bytes32"},
     {"name":"receiverChainId","type":"uint256"},
     {"name":"receiverChainAddress","type":"string"}]},
  {"type":"event","name":"HTLCCreated","anonymous":false,
   "inputs":[
     {"name":"contractId","type":"bytes32","indexed":true},
     {"name":"sender","type":"address","indexed":true},
     {"name":"receiver","type":"address","indexed":true},
     {"name":"amount","type":"uint256","indexed":false},
     {"name":"hashlock","type":"bytes32","indexed":false},
     {"name":"timelock","type":"uint256","indexed":false},
     {"name":"receiverChainId","type":"uint256","indexed":false},
     {"name":"receiverChainAddress","type":"string","indexed":false}]},
  {"type":"event","name":"HTLCRedeemed","anonymous":false,
   "inputs":[
     {"name":"contractId","type":"bytes32","indexed":true},
     {"name":"preimage","type":"bytes32","indexed":false}]},
  {"type":"event","name":"HTLCRefunded","anonymous":false,
   "inputs":[{"name":"contractId","type":"bytes32","indexed":true}]}
]`

const (
	methodCreate      = "createHTLC"
	methodRedeem      = "redeem"
	methodBatchRedeem = "batchRedeem"
	methodRefund      = "refund"
	methodGetContract = "getContract"

	eventCreated  = "HTLCCreated"
	eventRedeemed = "HTLCRedeemed"
	eventRefunded = "HTLCRefunded"
)

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(HTLCABI))
	if err != nil {
		panic(err)
	}

	return parsed
}

// ABI returns the parsed contract interface.
func ABI() abi.ABI {
	return parsedABI
}

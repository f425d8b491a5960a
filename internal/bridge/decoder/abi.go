package decoder

import "strings"

// bridgeABIJSON carries the nine SynapseBridge events the decoder classifies
// (spec.md §3's Topic→Event map), restored from the public SynapseBridge.sol
// event signatures referenced by original_source/indexer/data.py's
// BRIDGE_ABI. Only the events the system recognises are declared; the
// decoder never needs the bridge contract's functions.
const bridgeABIJSON = `[
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"chainId","type":"uint256"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"TokenDeposit","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"chainId","type":"uint256"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"TokenRedeem","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"fee","type":"uint256"},{"indexed":true,"name":"kappa","type":"bytes32"}],"name":"TokenWithdraw","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"fee","type":"uint256"},{"indexed":true,"name":"kappa","type":"bytes32"}],"name":"TokenMint","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"chainId","type":"uint256"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"tokenIndexFrom","type":"uint8"},{"indexed":false,"name":"tokenIndexTo","type":"uint8"},{"indexed":false,"name":"minDy","type":"uint256"},{"indexed":false,"name":"deadline","type":"uint256"}],"name":"TokenDepositAndSwap","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"chainId","type":"uint256"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"tokenIndexFrom","type":"uint8"},{"indexed":false,"name":"tokenIndexTo","type":"uint8"},{"indexed":false,"name":"minDy","type":"uint256"},{"indexed":false,"name":"deadline","type":"uint256"}],"name":"TokenRedeemAndSwap","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"chainId","type":"uint256"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"swapTokenIndex","type":"uint8"},{"indexed":false,"name":"swapMinAmount","type":"uint256"},{"indexed":false,"name":"swapDeadline","type":"uint256"}],"name":"TokenRedeemAndRemove","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"fee","type":"uint256"},{"indexed":false,"name":"tokenIndexFrom","type":"uint8"},{"indexed":false,"name":"tokenIndexTo","type":"uint8"},{"indexed":false,"name":"minDy","type":"uint256"},{"indexed":false,"name":"deadline","type":"uint256"},{"indexed":false,"name":"swapSuccess","type":"bool"},{"indexed":true,"name":"kappa","type":"bytes32"}],"name":"TokenMintAndSwap","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"fee","type":"uint256"},{"indexed":false,"name":"swapTokenIndex","type":"uint8"},{"indexed":false,"name":"swapMinAmount","type":"uint256"},{"indexed":false,"name":"swapDeadline","type":"uint256"},{"indexed":false,"name":"swapSuccess","type":"bool"},{"indexed":true,"name":"kappa","type":"bytes32"}],"name":"TokenWithdrawAndRemove","type":"event"}
]`

func bridgeABIReader() *strings.Reader { return strings.NewReader(bridgeABIJSON) }

package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// shotGameABI is the ABI surface of the shot game contract consumed by this
// client. The contract itself (commitment scheme, payout logic) is a black
// box; only these methods and the ShotRevealed event are relied on.
const shotGameABI = `[
  {"type":"function","name":"commitShot","stateMutability":"payable","inputs":[{"name":"commitmentHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"revealShot","stateMutability":"nonpayable","inputs":[{"name":"secret","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"cleanupExpiredPendingShot","stateMutability":"nonpayable","inputs":[{"name":"player","type":"address"}],"outputs":[]},
  {"type":"function","name":"canCommitShot","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"canRevealShot","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"hasPendingShot","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getPendingShot","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"blockNumber","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"exists","type":"bool"}]},
  {"type":"function","name":"getCooldownRemaining","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getCurrentPot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"SHOT_COST","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"ShotRevealed","inputs":[{"name":"player","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"won","type":"bool","indexed":false}],"anonymous":false}
]`

// shotRevealedEvent is the event carrying the wager outcome flag.
const shotRevealedEvent = "ShotRevealed"

// parseShotGameABI parses the embedded contract ABI once at client construction.
func parseShotGameABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(shotGameABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse shot game ABI: %w", err)
	}
	return parsed, nil
}

package vault

import "errors"

var (
	errNilState              = errors.New("vault engine: state not configured")
	errNotInitialized        = errors.New("vault engine: not initialized")
	errAlreadyInitialized    = errors.New("vault engine: already initialized")
	errInvalidAmount         = errors.New("vault engine: amount must be positive")
	errInvalidFeeRate        = errors.New("vault engine: fee rate exceeds 10000 bps")
	errInvalidAsset          = errors.New("vault engine: asset symbol required")
	errInvalidAdmin          = errors.New("vault engine: admin address required")
	errUnauthorized          = errors.New("vault engine: unauthorized caller")
	errStrategyNotBound      = errors.New("vault engine: no strategy bound")
	errStrategyPositionLive  = errors.New("vault engine: bound strategy still reports assets; divest before rebinding")
	errInsufficientShares    = errors.New("vault engine: insufficient shares")
	errInsufficientAllowance = errors.New("vault engine: insufficient share allowance")
	errNoShares              = errors.New("vault engine: vault has no outstanding shares")
	errDivestReturnedZero    = errors.New("vault engine: strategy divest returned zero")
	errRewardTokenUnset      = errors.New("vault engine: reward token not configured")
	errRewardWindowInvalid   = errors.New("vault engine: reward window start must precede end")
	errRewardWindowActive    = errors.New("vault engine: reward window still active")
)

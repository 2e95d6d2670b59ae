package node

// Timer names armed/killed through Kernel.SetTimer/KillTimer (spec.md §4,
// §6). Kept as string constants rather than an enum since the kernel's
// timer queue keys on (nodeID, name) pairs and the spec itself names them
// this way in its event tables.
const (
	TimerProbe         = "TIMER_PROBE"
	TimerJoinRequest   = "TIMER_JOIN_REQUEST"
	TimerHeartBeat     = "TIMER_HEART_BEAT"
	TimerTableShare    = "TIMER_TABLE_SHARE"
	TimerRoleOptimize  = "TIMER_ROLE_OPTIMIZE"
	TimerNetworkRetry  = "TIMER_NETWORK_REQUEST_RETRY"
	TimerData          = "TIMER_DATA"
	TimerChNomination  = "TIMER_CH_NOMINATION_ACK"
)

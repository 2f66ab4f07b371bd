package domain

import "fmt"

// DispatchControlRequest

type DispatchControlRequest interface {
	ActorRequest
	DispatchControlCommand() string
}

type DispatchControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r DispatchControlRequestMixIn) DispatchControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// DispatchControl commands

// DispatchHoldRequest stops or resumes writing the ESS. Decisions are still computed.
type DispatchHoldRequest struct {
	DispatchControlRequestMixIn
	Enable bool
}

type DispatchHoldResponse struct {
	ActorResponseMixIn
	Changed bool
}

type DispatchDryRunRequest struct {
	DispatchControlRequestMixIn
	Enable bool
}

type DispatchDryRunResponse struct {
	ActorResponseMixIn
	Changed bool
}

// ensure interface compliance
var (
	_ DispatchControlRequest = (*DispatchHoldRequest)(nil)
	_ DispatchControlRequest = (*DispatchDryRunRequest)(nil)
)

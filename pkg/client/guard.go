package client

import "context"

// Decision is the guard's answer for one lesson.
type Decision struct {
	Allowed bool
	Reason  string
	// Offline is true when the service could not be reached and the
	// answer came from the local fallback policy.
	Offline bool
}

// Guard decides per-lesson access for a frontend. It forwards whatever
// credentials the State holds and applies a fixed fallback policy when
// the service is unreachable: lessons in the static free set open
// anyway, everything else stays closed.
type Guard struct {
	client *Client
	state  *State
	free   map[string]struct{}
}

// NewGuard builds a guard over client and state. freeLessons is the
// statically-known free set and must match the service configuration;
// it is the only thing the guard will grant without a server answer.
func NewGuard(c *Client, state *State, freeLessons []string) *Guard {
	free := make(map[string]struct{}, len(freeLessons))
	for _, id := range freeLessons {
		free[id] = struct{}{}
	}
	return &Guard{client: c, state: state, free: free}
}

// CanAccess returns the access decision for lessonID. The server is
// always asked first, even for free lessons, so device enrollment and
// access logging still happen when it is reachable.
func (g *Guard) CanAccess(ctx context.Context, lessonID string) Decision {
	q := LessonQuery{LessonID: lessonID}
	if tok, ok := g.state.SessionToken(); ok {
		q.SessionToken = tok
	} else if token, tokenID, ok := g.state.AccessToken(); ok {
		q.Token = token
		q.TokenID = tokenID
		q.DeviceID = g.state.DeviceID()
	}

	verdict, err := g.client.CheckLesson(ctx, q)
	if err != nil {
		if _, free := g.free[lessonID]; free {
			return Decision{Allowed: true, Reason: ReasonLocalFree, Offline: true}
		}
		return Decision{Allowed: false, Reason: ReasonNetworkError, Offline: true}
	}
	return Decision{Allowed: verdict.CanAccess, Reason: verdict.Reason}
}

// Unlock redeems a code for this device and stores the issued token
// pair on success.
func (g *Guard) Unlock(ctx context.Context, code string) (*RedeemResult, error) {
	res, err := g.client.ValidateCode(ctx, code, g.state.DeviceID())
	if err != nil {
		return nil, err
	}
	if res.OK {
		g.state.SetAccessToken(res.Token, res.TokenID)
	}
	return res, nil
}

// Login authenticates the member and stores the session on success.
func (g *Guard) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	res, err := g.client.Login(ctx, email, password, g.state.DeviceID())
	if err != nil {
		return nil, err
	}
	if res.OK {
		g.state.SetSession(res.SessionToken, res.User)
	}
	return res, nil
}

// Logout clears the local session. The server session expires on its
// own; there is no revocation endpoint.
func (g *Guard) Logout() {
	g.state.ClearSession()
}

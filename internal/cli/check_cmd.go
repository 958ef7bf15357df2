package cli

import "context"

type CheckCmd struct{}

type checkResult struct {
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (c *CheckCmd) Run(ctx context.Context, cmdCtx *commandContext) error {
	client, err := cmdCtx.apiClient()
	if err != nil {
		code := mapErrorToExitCode(err)
		if code == 1 {
			code = 3
		}
		return exitError(code, err)
	}
	src, err := cmdCtx.source(client)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}

	out := outputFor(cmdCtx)
	user, err := src.Check(ctx)
	if err != nil {
		if out.JSON {
			_ = out.PrintJSON(checkResult{Status: "FAILED", Error: err.Error()})
		}
		return exitError(mapErrorToExitCode(err), err)
	}

	if out.JSON {
		return out.PrintJSON(checkResult{Status: "SUCCEEDED", UserID: user.ID, Name: user.Name})
	}
	return out.PrintTable([]string{"Status", "User ID", "Name"}, [][]string{{"SUCCEEDED", user.ID, user.Name}})
}

package boot

import (
	"os"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// ExitRestarter restarts by exiting the process with Code and leaving the
// restart to the supervisor.
type ExitRestarter struct {
	Code   int
	Logger logging.Logger

	// Exit replaces os.Exit when set
	Exit func(code int)
}

// Restart exits the process. It only returns when Exit does.
func (r ExitRestarter) Restart() error {
	if r.Logger != nil {
		r.Logger.Info("restarting", "exit_code", r.Code)
	}
	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(r.Code)
	return nil
}

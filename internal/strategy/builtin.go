package strategy

import (
	"context"
	"fmt"

	"github.com/jonlambert/deliver/internal/host"
)

// Builtins returns the built-in strategies in declared order. The order is
// significant: strategy resolution takes the first substring match in this
// enumeration.
func Builtins() []*Strategy {
	return []*Strategy{
		remoteStrategy(),
		restartStrategy(),
		pingStrategy(),
	}
}

// remoteStrategy is the default full deployment: authorize the hosts,
// push the configured branch, install dependencies, export the supervisor
// configuration, and launch.
func remoteStrategy() *Strategy {
	return &Strategy{
		Name: "remote",
		Steps: []Step{
			{
				Name: "authorize hosts",
				Run: func(ctx context.Context, rt *Runtime) error {
					cmd := fmt.Sprintf(
						"ssh-keyscan -H %s >> $HOME/.ssh/known_hosts 2>/dev/null",
						host.Normalize(rt.Hosts),
					)
					return rt.Dispatcher.Local(ctx, "authorize hosts", cmd)
				},
			},
			{
				Name: "push code",
				Run: func(ctx context.Context, rt *Runtime) error {
					cmd := "cd /srv/{{.App}} && git fetch --all --quiet && git reset --hard origin/{{.Branch}}"
					return rt.Dispatcher.Remote(ctx, "push code", cmd, rt.Hosts)
				},
			},
			{
				Name: "install dependencies",
				Run: func(ctx context.Context, rt *Runtime) error {
					cmd := "cd /srv/{{.App}} && if [ -x script/install-dependencies ]; then script/install-dependencies; fi"
					return rt.Dispatcher.Remote(ctx, "install dependencies", cmd, rt.Hosts)
				},
			},
			exportSupervisorStep(),
			launchStep(),
		},
	}
}

// restartStrategy re-exports the supervisor configuration and relaunches
// without touching the code.
func restartStrategy() *Strategy {
	return &Strategy{
		Name: "restart",
		Steps: []Step{
			exportSupervisorStep(),
			launchStep(),
		},
	}
}

// pingStrategy checks that every host is reachable and accepts commands.
func pingStrategy() *Strategy {
	return &Strategy{
		Name: "ping",
		Steps: []Step{
			{
				Name: "ping hosts",
				Run: func(ctx context.Context, rt *Runtime) error {
					return rt.Dispatcher.Remote(ctx, "ping hosts", "true", rt.Hosts)
				},
			},
		},
	}
}

func exportSupervisorStep() Step {
	return Step{
		Name: "export supervisor config",
		Run: func(ctx context.Context, rt *Runtime) error {
			cmd := "cd /srv/{{.App}} && sudo foreman export {{.Supervisor}} /etc/{{.Supervisor}} -a {{.App}} -u {{.User}} -l /var/log/{{.App}}"
			return rt.Dispatcher.Remote(ctx, "export supervisor config", cmd, rt.Hosts)
		},
	}
}

func launchStep() Step {
	return Step{
		Name: "launch",
		Run: func(ctx context.Context, rt *Runtime) error {
			cmd := "sudo service {{.App}} restart 2>/dev/null || sudo service {{.App}} start"
			return rt.Dispatcher.Remote(ctx, "launch", cmd, rt.Hosts)
		},
	}
}

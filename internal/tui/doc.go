// Package tui implements fwdctl's interactive dashboard on the Bubble Tea
// framework.
//
// The dashboard is a thin shell over the session manager: forwards live in
// the manager's registry, and the model only queries snapshots, renders them,
// and translates key presses into Start and Stop calls. Lifecycle notices
// arrive over a bus subscription and fill the notice pane; channel-mode log
// entries fill the log pane.
//
// # Screens
//
//   - Sessions: the main table of forward sessions with status and uptime,
//     refreshed every second.
//   - Form: free-form entry of a new target (context, namespace, pod, ports).
//   - Picker: the forwards declared in the configuration file, started with
//     one key press.
//
// Long-running manager calls are dispatched as tea.Cmd functions so the UI
// goroutine never blocks on kubectl.
package tui

package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfsr/fsrd/internal/models"
)

// formatThresholds renders a threshold set as "[a, b, c, d]". Client UIs
// match on this shape in command reply messages, so keep it stable.
func formatThresholds(t [4]int) string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Apply executes one client command and returns its reply. The write lock
// is held for the whole command, device I/O included, so concurrent
// commands serialize and every reply's state snapshot is consistent with
// the mutation it reports.
//
// Ordering rule for every mutating command: device first, then state, then
// save. The stored configuration never claims a threshold the device
// rejected.
func (c *Controller) Apply(ctx context.Context, cmd models.Command) models.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Type {
	case models.CmdUpdateThreshold:
		return c.updateThreshold(ctx, cmd.ProfileName, cmd.ThresholdIndex, cmd.Value)
	case models.CmdAddProfile:
		return c.addProfile(cmd.Name, cmd.Thresholds)
	case models.CmdRemoveProfile:
		return c.removeProfile(cmd.Name)
	case models.CmdChangeProfile:
		return c.changeProfile(ctx, cmd.Name)
	case models.CmdChangePlayer:
		return c.changePlayer(ctx, cmd.Name)
	case models.CmdSetDefaultProfile:
		return c.setDefaultProfile(cmd.Name)
	case models.CmdGetCurrentThresholds:
		return c.getCurrentThresholds(ctx)
	case models.CmdGetSensorValues:
		// Deprecated; kept so old clients get a friendly pointer.
		return models.CommandOK("Use sensor stream for real-time data", c.snapshot())
	case models.CmdStartSensorStream:
		c.stream.Set(true)
		return models.CommandOK("Sensor stream started", c.snapshot())
	case models.CmdStopSensorStream:
		c.stream.Set(false)
		return models.CommandOK("Sensor stream stopped", c.snapshot())
	case models.CmdSubscribe, models.CmdUnsubscribe:
		// Reserved wire variants. Every connection already receives every
		// event, so per-event subscriptions are not supported.
		return models.CommandFailed("Subscription commands are not supported")
	default:
		return models.CommandFailed(fmt.Sprintf("Unknown command '%s'", cmd.Type))
	}
}

func (c *Controller) updateThreshold(ctx context.Context, profileName string, index, value int) models.Response {
	profile, ok := c.state.Profiles[profileName]
	if !ok {
		return models.CommandFailed(fmt.Sprintf("Profile '%s' not found", profileName))
	}
	if index < 0 || index > 3 {
		return models.CommandFailed("Threshold index must be 0-3")
	}

	if err := c.drv.SetThreshold(ctx, index, value); err != nil {
		return models.CommandFailed(fmt.Sprintf("Failed to set threshold on serial device: %v", err))
	}

	profile.Thresholds[index] = value
	c.state.Profiles[profileName] = profile
	if resp := c.persist(); resp != nil {
		return *resp
	}
	return models.CommandOK(
		fmt.Sprintf("Updated threshold %d to %d for profile %s and serial device", index, value, profileName),
		c.snapshot())
}

func (c *Controller) addProfile(name string, thresholds [4]int) models.Response {
	if _, ok := c.state.Profiles[name]; ok {
		return models.CommandFailed(fmt.Sprintf("Profile '%s' already exists", name))
	}

	c.state.Profiles[name] = models.Profile{Thresholds: thresholds}
	if c.state.CurrentProfile == "" {
		c.state.CurrentProfile = name
	}
	if resp := c.persist(); resp != nil {
		return *resp
	}
	return models.CommandOK(fmt.Sprintf("Added profile '%s'", name), c.snapshot())
}

func (c *Controller) removeProfile(name string) models.Response {
	if _, ok := c.state.Profiles[name]; !ok {
		return models.CommandFailed(fmt.Sprintf("Profile '%s' not found", name))
	}
	if c.state.CurrentProfile == name {
		return models.CommandFailed("Cannot remove the currently selected profile")
	}

	delete(c.state.Profiles, name)
	if resp := c.persist(); resp != nil {
		return *resp
	}
	return models.CommandOK(fmt.Sprintf("Removed profile '%s'", name), c.snapshot())
}

func (c *Controller) changeProfile(ctx context.Context, name string) models.Response {
	profile, ok := c.state.Profiles[name]
	if !ok {
		return models.CommandFailed(fmt.Sprintf("Profile '%s' not found", name))
	}

	if err := c.drv.SetAllThresholds(ctx, profile.Thresholds); err != nil {
		return models.CommandFailed(fmt.Sprintf("Failed to set thresholds on serial device: %v", err))
	}

	c.state.CurrentProfile = name
	playerNote := ""
	if c.state.CurrentPlayer != "" {
		if player, ok := c.state.Players[c.state.CurrentPlayer]; ok {
			player.Profile = name
			c.state.Players[c.state.CurrentPlayer] = player
		}
		playerNote = fmt.Sprintf(" (updated current player '%s' profile)", c.state.CurrentPlayer)
	}
	if resp := c.persist(); resp != nil {
		return *resp
	}
	return models.CommandOK(
		fmt.Sprintf("Changed to profile '%s' and set all thresholds on serial device%s", name, playerNote),
		c.snapshot())
}

func (c *Controller) changePlayer(ctx context.Context, name string) models.Response {
	if player, ok := c.state.Players[name]; ok {
		profile, ok := c.state.Profiles[player.Profile]
		if !ok {
			return models.CommandFailed(fmt.Sprintf("Player '%s' has invalid profile '%s'", name, player.Profile))
		}
		if err := c.drv.SetAllThresholds(ctx, profile.Thresholds); err != nil {
			return models.CommandFailed(fmt.Sprintf("Failed to set thresholds on serial device: %v", err))
		}
		c.state.CurrentPlayer = name
		c.state.CurrentProfile = player.Profile
		if resp := c.persist(); resp != nil {
			return *resp
		}
		return models.CommandOK(
			fmt.Sprintf("Switched to player '%s' with profile '%s' and set thresholds on serial device", name, player.Profile),
			c.snapshot())
	}

	// Unknown player: create one bound to the default profile when it is
	// set and still exists, falling back to the current profile.
	profileToUse := ""
	if c.state.DefaultProfile != "" {
		if _, ok := c.state.Profiles[c.state.DefaultProfile]; ok {
			profileToUse = c.state.DefaultProfile
		}
	}
	if profileToUse == "" {
		profileToUse = c.state.CurrentProfile
	}
	if profileToUse == "" {
		return models.CommandFailed("No default profile or current profile available to assign to new player")
	}

	c.state.Players[name] = models.Player{Name: name, Profile: profileToUse}
	c.state.CurrentPlayer = name
	c.state.CurrentProfile = profileToUse
	if resp := c.persist(); resp != nil {
		return *resp
	}
	return models.CommandOK(
		fmt.Sprintf("Created new player '%s' with profile '%s'", name, profileToUse),
		c.snapshot())
}

func (c *Controller) setDefaultProfile(name string) models.Response {
	if _, ok := c.state.Profiles[name]; !ok {
		return models.CommandFailed(fmt.Sprintf("Profile '%s' not found", name))
	}

	c.state.DefaultProfile = name
	if resp := c.persist(); resp != nil {
		return *resp
	}
	return models.CommandOK(fmt.Sprintf("Set '%s' as default profile", name), c.snapshot())
}

func (c *Controller) getCurrentThresholds(ctx context.Context) models.Response {
	name := c.state.CurrentProfile
	if name == "" {
		return models.CommandFailed("No current profile selected")
	}
	profile, ok := c.state.Profiles[name]
	if !ok {
		// The pointer names a profile that no longer exists. Report it
		// rather than pretending nothing is selected.
		return models.CommandFailed(fmt.Sprintf("Current profile '%s' not found", name))
	}

	deviceThresholds, err := c.drv.CurrentThresholds(ctx)
	if err != nil {
		return models.CommandFailed(fmt.Sprintf("Failed to read thresholds from device: %v", err))
	}

	if deviceThresholds == profile.Thresholds {
		return models.CommandOK(
			fmt.Sprintf("Current thresholds for profile '%s': %s (device synchronized)",
				name, formatThresholds(profile.Thresholds)),
			c.snapshot())
	}

	// Drift: the device disagrees with the stored profile. Repair it.
	if err := c.drv.SetAllThresholds(ctx, profile.Thresholds); err != nil {
		return models.CommandFailed(
			fmt.Sprintf("Device thresholds (%s) don't match profile (%s) and failed to fix: %v",
				formatThresholds(deviceThresholds), formatThresholds(profile.Thresholds), err))
	}
	return models.CommandOK(
		fmt.Sprintf("Current thresholds for profile '%s': %s (device was out of sync, now fixed)",
			name, formatThresholds(profile.Thresholds)),
		c.snapshot())
}

package controller_test

import (
	"context"
	"strings"
	"testing"

	"github.com/openfsr/fsrd/internal/config"
	"github.com/openfsr/fsrd/internal/controller"
	"github.com/openfsr/fsrd/internal/device"
	"github.com/openfsr/fsrd/internal/models"
	"github.com/openfsr/fsrd/internal/telemetry"
)

// twoProfileState is the standard fixture: profiles A and B, current A.
func twoProfileState() models.State {
	st := models.DefaultState()
	st.Profiles["A"] = models.Profile{Thresholds: [4]int{10, 20, 30, 40}}
	st.Profiles["B"] = models.Profile{Thresholds: [4]int{50, 60, 70, 80}}
	st.CurrentProfile = "A"
	return st
}

func newController(t *testing.T, st models.State, sim *device.SimPort) (*controller.Controller, *config.MemStore, *telemetry.Flag) {
	t.Helper()
	store := config.NewMemStore()
	if err := store.Save(&st); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	flag := &telemetry.Flag{}
	ctrl, err := controller.New(device.New(sim), store, flag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctrl, store, flag
}

func apply(t *testing.T, ctrl *controller.Controller, cmd models.Command) models.Response {
	t.Helper()
	return ctrl.Apply(context.Background(), cmd)
}

func requireSuccess(t *testing.T, resp models.Response) {
	t.Helper()
	if !resp.Success {
		t.Fatalf("command failed: %q", resp.Message)
	}
	if resp.Data == nil {
		t.Fatal("successful command reply missing state snapshot")
	}
	if resp.ResponseType != models.ResponseTypeCommand {
		t.Fatalf("response_type = %q", resp.ResponseType)
	}
}

func requireFailure(t *testing.T, resp models.Response, wantMsg string) {
	t.Helper()
	if resp.Success {
		t.Fatalf("command unexpectedly succeeded: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, wantMsg) {
		t.Fatalf("message %q does not contain %q", resp.Message, wantMsg)
	}
	if resp.Data != nil {
		t.Error("failed command reply must not carry state")
	}
}

func TestNewSeedsDefaultProfile(t *testing.T) {
	store := config.NewMemStore()
	ctrl, err := controller.New(device.New(device.NewSim([4]int{0, 0, 0, 0})), store, &telemetry.Flag{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	st := ctrl.State()
	if got := st.Profiles["DEFAULT"].Thresholds; got != [4]int{100, 200, 300, 400} {
		t.Errorf("seeded thresholds = %v", got)
	}
	if st.CurrentProfile != "DEFAULT" {
		t.Errorf("current profile = %q, want DEFAULT", st.CurrentProfile)
	}
	if store.Saves() != 1 {
		t.Errorf("seeding should persist once, got %d saves", store.Saves())
	}
}

func TestUpdateThresholdPersistsOnEcho(t *testing.T) {
	st := models.DefaultState()
	st.Profiles["DEFAULT"] = models.Profile{Thresholds: [4]int{100, 200, 300, 400}}
	st.CurrentProfile = "DEFAULT"
	sim := device.NewSim([4]int{100, 200, 300, 400})
	ctrl, store, _ := newController(t, st, sim)

	resp := apply(t, ctrl, models.Command{
		Type: models.CmdUpdateThreshold, ProfileName: "DEFAULT", ThresholdIndex: 2, Value: 999,
	})
	requireSuccess(t, resp)
	if want := "Updated threshold 2 to 999 for profile DEFAULT and serial device"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}

	want := [4]int{100, 200, 999, 400}
	if got := ctrl.State().Profiles["DEFAULT"].Thresholds; got != want {
		t.Errorf("stored thresholds = %v, want %v", got, want)
	}
	if got := sim.Thresholds(); got != want {
		t.Errorf("device thresholds = %v, want %v", got, want)
	}
	if saved := store.Saved(); saved == nil || saved.Profiles["DEFAULT"].Thresholds != want {
		t.Error("persisted state does not reflect the update")
	}
}

func TestUpdateThresholdIndexOutOfRange(t *testing.T) {
	sim := device.NewSim([4]int{10, 20, 30, 40})
	ctrl, store, _ := newController(t, twoProfileState(), sim)
	before := store.Saves()

	for _, index := range []int{-1, 4, 100} {
		resp := apply(t, ctrl, models.Command{
			Type: models.CmdUpdateThreshold, ProfileName: "A", ThresholdIndex: index, Value: 1,
		})
		requireFailure(t, resp, "Threshold index must be 0-3")
	}
	if len(sim.History()) != 0 {
		t.Error("rejected index must not reach the device")
	}
	if store.Saves() != before {
		t.Error("rejected index must not persist")
	}
}

func TestUpdateThresholdUnknownProfile(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))
	resp := apply(t, ctrl, models.Command{
		Type: models.CmdUpdateThreshold, ProfileName: "NOPE", ThresholdIndex: 0, Value: 1,
	})
	requireFailure(t, resp, "Profile 'NOPE' not found")
}

func TestRemoveCurrentProfileAlwaysFails(t *testing.T) {
	ctrl, store, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))
	before := store.Saves()

	resp := apply(t, ctrl, models.Command{Type: models.CmdRemoveProfile, Name: "A"})
	requireFailure(t, resp, "Cannot remove the currently selected profile")

	st := ctrl.State()
	if _, ok := st.Profiles["A"]; !ok {
		t.Error("profile A was removed despite the failure")
	}
	if store.Saves() != before {
		t.Error("failed removal must not persist")
	}
}

func TestRemoveProfile(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdRemoveProfile, Name: "B"})
	requireSuccess(t, resp)
	if want := "Removed profile 'B'"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if _, ok := ctrl.State().Profiles["B"]; ok {
		t.Error("profile B still present")
	}
}

func TestRemoveProfileNotFound(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))
	resp := apply(t, ctrl, models.Command{Type: models.CmdRemoveProfile, Name: "NOPE"})
	requireFailure(t, resp, "Profile 'NOPE' not found")
}

func TestAddProfile(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{
		Type: models.CmdAddProfile, Name: "C", Thresholds: [4]int{1, 2, 3, 4},
	})
	requireSuccess(t, resp)
	if got := ctrl.State().Profiles["C"].Thresholds; got != [4]int{1, 2, 3, 4} {
		t.Errorf("added thresholds = %v", got)
	}

	resp = apply(t, ctrl, models.Command{Type: models.CmdAddProfile, Name: "C"})
	requireFailure(t, resp, "Profile 'C' already exists")
}

func TestAddProfileAdoptsCurrentWhenUnset(t *testing.T) {
	st := models.DefaultState()
	st.Profiles["ORPHAN"] = models.Profile{Thresholds: [4]int{1, 1, 1, 1}}
	ctrl, _, _ := newController(t, st, device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{
		Type: models.CmdAddProfile, Name: "FIRST", Thresholds: [4]int{5, 5, 5, 5},
	})
	requireSuccess(t, resp)
	if got := ctrl.State().CurrentProfile; got != "FIRST" {
		t.Errorf("current profile = %q, want FIRST", got)
	}
}

func TestChangeProfileWritesAllFourInOrder(t *testing.T) {
	sim := device.NewSim([4]int{10, 20, 30, 40})
	ctrl, _, _ := newController(t, twoProfileState(), sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangeProfile, Name: "B"})
	requireSuccess(t, resp)
	if want := "Changed to profile 'B' and set all thresholds on serial device"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if got := ctrl.State().CurrentProfile; got != "B" {
		t.Errorf("current profile = %q, want B", got)
	}

	want := []device.ThresholdWrite{
		{Index: 0, Value: 50}, {Index: 1, Value: 60}, {Index: 2, Value: 70}, {Index: 3, Value: 80},
	}
	got := sim.History()
	if len(got) != len(want) {
		t.Fatalf("device saw %d writes, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChangeProfileUpdatesCurrentPlayer(t *testing.T) {
	st := twoProfileState()
	st.Players["P1"] = models.Player{Name: "P1", Profile: "A"}
	st.CurrentPlayer = "P1"
	ctrl, _, _ := newController(t, st, device.NewSim([4]int{10, 20, 30, 40}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangeProfile, Name: "B"})
	requireSuccess(t, resp)
	if !strings.Contains(resp.Message, "(updated current player 'P1' profile)") {
		t.Errorf("message missing player note: %q", resp.Message)
	}
	if got := ctrl.State().Players["P1"].Profile; got != "B" {
		t.Errorf("player profile = %q, want B", got)
	}
}

func TestChangeProfileNotFound(t *testing.T) {
	sim := device.NewSim([4]int{0, 0, 0, 0})
	ctrl, _, _ := newController(t, twoProfileState(), sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangeProfile, Name: "NOPE"})
	requireFailure(t, resp, "Profile 'NOPE' not found")
	if len(sim.History()) != 0 {
		t.Error("unknown profile must not reach the device")
	}
}

func TestGetCurrentThresholdsSynchronized(t *testing.T) {
	sim := device.NewSim([4]int{10, 20, 30, 40})
	ctrl, _, _ := newController(t, twoProfileState(), sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdGetCurrentThresholds})
	requireSuccess(t, resp)
	if want := "Current thresholds for profile 'A': [10, 20, 30, 40] (device synchronized)"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if len(sim.History()) != 0 {
		t.Error("synchronized device must see no corrective writes")
	}
}

func TestGetCurrentThresholdsRepairsDrift(t *testing.T) {
	sim := device.NewSim([4]int{1, 2, 3, 4})
	ctrl, _, _ := newController(t, twoProfileState(), sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdGetCurrentThresholds})
	requireSuccess(t, resp)
	if want := "Current thresholds for profile 'A': [10, 20, 30, 40] (device was out of sync, now fixed)"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if n := len(sim.History()); n != 4 {
		t.Errorf("repair made %d writes, want exactly 4", n)
	}
	if got := sim.Thresholds(); got != [4]int{10, 20, 30, 40} {
		t.Errorf("device thresholds after repair = %v", got)
	}
}

func TestGetCurrentThresholdsNoCurrentProfile(t *testing.T) {
	st := models.DefaultState()
	st.Profiles["X"] = models.Profile{Thresholds: [4]int{1, 1, 1, 1}}
	ctrl, _, _ := newController(t, st, device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdGetCurrentThresholds})
	requireFailure(t, resp, "No current profile selected")
}

func TestGetCurrentThresholdsDanglingPointer(t *testing.T) {
	st := models.DefaultState()
	st.Profiles["X"] = models.Profile{Thresholds: [4]int{1, 1, 1, 1}}
	st.CurrentProfile = "GONE"
	ctrl, _, _ := newController(t, st, device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdGetCurrentThresholds})
	requireFailure(t, resp, "Current profile 'GONE' not found")
}

func TestChangePlayerExisting(t *testing.T) {
	st := twoProfileState()
	st.Players["P1"] = models.Player{Name: "P1", Profile: "B"}
	sim := device.NewSim([4]int{10, 20, 30, 40})
	ctrl, _, _ := newController(t, st, sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangePlayer, Name: "P1"})
	requireSuccess(t, resp)
	if want := "Switched to player 'P1' with profile 'B' and set thresholds on serial device"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}

	got := ctrl.State()
	if got.CurrentPlayer != "P1" || got.CurrentProfile != "B" {
		t.Errorf("pointers = (%q, %q), want (P1, B)", got.CurrentPlayer, got.CurrentProfile)
	}
	if sim.Thresholds() != [4]int{50, 60, 70, 80} {
		t.Errorf("device thresholds = %v", sim.Thresholds())
	}
}

func TestChangePlayerInvalidProfile(t *testing.T) {
	st := twoProfileState()
	st.Players["P1"] = models.Player{Name: "P1", Profile: "GONE"}
	sim := device.NewSim([4]int{0, 0, 0, 0})
	ctrl, _, _ := newController(t, st, sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangePlayer, Name: "P1"})
	requireFailure(t, resp, "Player 'P1' has invalid profile 'GONE'")
	if len(sim.History()) != 0 {
		t.Error("invalid profile must not reach the device")
	}
	if got := ctrl.State().CurrentPlayer; got != "" {
		t.Errorf("current player mutated to %q on failure", got)
	}
}

func TestChangePlayerCreatesWithDefaultProfile(t *testing.T) {
	st := twoProfileState()
	st.DefaultProfile = "B"
	sim := device.NewSim([4]int{0, 0, 0, 0})
	ctrl, _, _ := newController(t, st, sim)

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangePlayer, Name: "NewKid"})
	requireSuccess(t, resp)
	if len(sim.History()) != 0 {
		t.Error("creating a player must not write thresholds")
	}
	if want := "Created new player 'NewKid' with profile 'B'"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}

	got := ctrl.State()
	if len(got.Players) != 1 {
		t.Fatalf("player table has %d entries, want 1", len(got.Players))
	}
	if p := got.Players["NewKid"]; p.Profile != "B" {
		t.Errorf("new player profile = %q, want B", p.Profile)
	}
	if got.CurrentPlayer != "NewKid" || got.CurrentProfile != "B" {
		t.Errorf("pointers = (%q, %q), want (NewKid, B)", got.CurrentPlayer, got.CurrentProfile)
	}
}

func TestChangePlayerFallsBackToCurrentProfile(t *testing.T) {
	// Default pointer dangles, so the current profile wins.
	st := twoProfileState()
	st.DefaultProfile = "GONE"
	ctrl, _, _ := newController(t, st, device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangePlayer, Name: "NewKid"})
	requireSuccess(t, resp)
	if got := ctrl.State().Players["NewKid"].Profile; got != "A" {
		t.Errorf("new player profile = %q, want A", got)
	}
}

func TestChangePlayerNoProfileAvailable(t *testing.T) {
	st := models.DefaultState()
	st.Profiles["ORPHAN"] = models.Profile{Thresholds: [4]int{1, 1, 1, 1}}
	ctrl, store, _ := newController(t, st, device.NewSim([4]int{0, 0, 0, 0}))
	before := store.Saves()

	resp := apply(t, ctrl, models.Command{Type: models.CmdChangePlayer, Name: "NewKid"})
	requireFailure(t, resp, "No default profile or current profile available to assign to new player")
	if len(ctrl.State().Players) != 0 {
		t.Error("failed creation must not insert a player")
	}
	if store.Saves() != before {
		t.Error("failed creation must not persist")
	}
}

func TestSetDefaultProfile(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdSetDefaultProfile, Name: "B"})
	requireSuccess(t, resp)
	if want := "Set 'B' as default profile"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if got := ctrl.State().DefaultProfile; got != "B" {
		t.Errorf("default profile = %q, want B", got)
	}

	resp = apply(t, ctrl, models.Command{Type: models.CmdSetDefaultProfile, Name: "NOPE"})
	requireFailure(t, resp, "Profile 'NOPE' not found")
}

func TestStartStopSensorStream(t *testing.T) {
	ctrl, _, flag := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdStartSensorStream})
	requireSuccess(t, resp)
	if resp.Message != "Sensor stream started" {
		t.Errorf("message = %q", resp.Message)
	}
	if !flag.Enabled() {
		t.Error("stream flag not set")
	}

	resp = apply(t, ctrl, models.Command{Type: models.CmdStopSensorStream})
	requireSuccess(t, resp)
	if resp.Message != "Sensor stream stopped" {
		t.Errorf("message = %q", resp.Message)
	}
	if flag.Enabled() {
		t.Error("stream flag not cleared")
	}
}

func TestGetSensorValuesDeprecated(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	resp := apply(t, ctrl, models.Command{Type: models.CmdGetSensorValues})
	requireSuccess(t, resp)
	if resp.Message != "Use sensor stream for real-time data" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.SensorValues != nil {
		t.Error("deprecated command must not carry sensor values")
	}
}

func TestSubscribeNotSupported(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	for _, typ := range []models.CommandType{models.CmdSubscribe, models.CmdUnsubscribe} {
		resp := apply(t, ctrl, models.Command{Type: typ, EventTypes: []string{"sensor_stream"}})
		requireFailure(t, resp, "Subscription commands are not supported")
	}
}

func TestSaveFailureSurfacedToCaller(t *testing.T) {
	st := twoProfileState()
	sim := device.NewSim([4]int{10, 20, 30, 40})
	ctrl, store, _ := newController(t, st, sim)
	store.SetFailSave(true)

	resp := apply(t, ctrl, models.Command{
		Type: models.CmdUpdateThreshold, ProfileName: "A", ThresholdIndex: 0, Value: 11,
	})
	requireFailure(t, resp, "Failed to save profiles:")
}

func TestDeviceFailureBlocksMutation(t *testing.T) {
	// A NullPort fails every read, so the echo never arrives and the
	// command must leave both store and pointers untouched.
	store := config.NewMemStore()
	st := twoProfileState()
	if err := store.Save(&st); err != nil {
		t.Fatal(err)
	}
	ctrl, err := controller.New(device.New(device.NullPort{}), store, &telemetry.Flag{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := store.Saves()

	resp := ctrl.Apply(context.Background(), models.Command{
		Type: models.CmdUpdateThreshold, ProfileName: "A", ThresholdIndex: 0, Value: 11,
	})
	requireFailure(t, resp, "Failed to set threshold on serial device:")
	if got := ctrl.State().Profiles["A"].Thresholds; got != [4]int{10, 20, 30, 40} {
		t.Errorf("store mutated despite device failure: %v", got)
	}
	if store.Saves() != before {
		t.Error("device failure must not persist")
	}

	resp = ctrl.Apply(context.Background(), models.Command{Type: models.CmdChangeProfile, Name: "B"})
	requireFailure(t, resp, "Failed to set thresholds on serial device:")
	if got := ctrl.State().CurrentProfile; got != "A" {
		t.Errorf("current profile mutated despite device failure: %q", got)
	}
}

func TestSyncDevicePushesCurrentProfile(t *testing.T) {
	sim := device.NewSim([4]int{0, 0, 0, 0})
	ctrl, _, _ := newController(t, twoProfileState(), sim)

	if err := ctrl.SyncDevice(context.Background()); err != nil {
		t.Fatalf("SyncDevice: %v", err)
	}
	if got := sim.Thresholds(); got != [4]int{10, 20, 30, 40} {
		t.Errorf("device thresholds = %v, want the current profile's", got)
	}
}

func TestSetDefaultProfileName(t *testing.T) {
	ctrl, _, _ := newController(t, twoProfileState(), device.NewSim([4]int{0, 0, 0, 0}))

	if !ctrl.SetDefaultProfileName("B") {
		t.Error("existing profile rejected")
	}
	if ctrl.SetDefaultProfileName("NOPE") {
		t.Error("unknown profile accepted")
	}
	if got := ctrl.State().DefaultProfile; got != "B" {
		t.Errorf("default profile = %q, want B", got)
	}
}

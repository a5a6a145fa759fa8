package tradeaction

import (
	"image"
	"testing"

	"github.com/originbots/tradebot/maactl"
	"github.com/originbots/tradebot/negotiation"
)

func TestDecodeParam(t *testing.T) {
	var p negotiateParam
	raw := `{"config":"cfg/tradebot.toml","max_rounds":2,"proposal":{"offered":"dino_egg","offered_qty":3,"wanted":"majestic_chair","wanted_qty":1}}`
	if err := decodeParam(raw, &p); err != nil {
		t.Fatalf("decodeParam: %v", err)
	}
	want := negotiation.Proposal{Offered: "dino_egg", OfferedQty: 3, Wanted: "majestic_chair", WantedQty: 1}
	if p.Proposal == nil || *p.Proposal != want {
		t.Fatalf("proposal = %+v, want %+v", p.Proposal, want)
	}
	if p.Config != "cfg/tradebot.toml" || p.MaxRounds != 2 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestDecodeParam_Empty(t *testing.T) {
	var c countParam
	if err := decodeParam("", &c); err != nil {
		t.Fatalf("empty param: %v", err)
	}
	if c.Cycles != 0 || c.Config != "" {
		t.Errorf("unexpected params %+v", c)
	}
}

func TestDecodeParam_Invalid(t *testing.T) {
	var c countParam
	if err := decodeParam("{cycles:", &c); err == nil {
		t.Fatal("expected error for malformed param")
	}
}

func TestCheckResolution(t *testing.T) {
	if err := checkResolution(image.Rect(0, 0, 1280, 720)); err != nil {
		t.Errorf("1280x720: %v", err)
	}
	if err := checkResolution(image.Rect(0, 0, 2560, 1440)); err == nil {
		t.Error("2560x1440 accepted")
	}
}

func TestAgentConfig_ScalesRegionsToScreenshot(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := agentConfig("")
	if err != nil {
		t.Fatalf("agentConfig: %v", err)
	}
	if got := cfg.Regions.Frame.Point(); got != maactl.WorkSize {
		t.Errorf("frame = %v, want %v", got, maactl.WorkSize)
	}
	neg := cfg.Negotiation()
	if want := image.Rect(644, 264, 674, 294); neg.BlankSlotRect != want {
		t.Errorf("blank slot = %v, want %v", neg.BlankSlotRect, want)
	}
	frame := image.Rect(0, 0, maactl.WorkSize.X, maactl.WorkSize.Y)
	if !neg.InventoryRect.In(frame) || !neg.BlankSlotRect.In(frame) {
		t.Errorf("regions outside the screenshot: %v %v", neg.InventoryRect, neg.BlankSlotRect)
	}
	for i, r := range cfg.Grid() {
		if !r.In(frame) {
			t.Errorf("grid slot %d %v outside the screenshot", i, r)
		}
	}
}

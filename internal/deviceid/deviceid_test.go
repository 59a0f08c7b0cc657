package deviceid

import "testing"

func TestParseDeviceID_CurrentFormat(t *testing.T) {
	id := "desktop-windows-a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	info, ok := ParseDeviceID(id)
	if !ok {
		t.Fatalf("ParseDeviceID(%q): want ok", id)
	}
	if info.DeviceType != TypeDesktop || info.Platform != PlatformWindows || info.RawID != id {
		t.Fatalf("info = %+v, want desktop/windows/%s", info, id)
	}
}

func TestParseDeviceID_LegacyFormat(t *testing.T) {
	info, ok := ParseDeviceID("default-a1b2c3d4e5f6789a1b2c3d4e5f6789")
	if !ok {
		t.Fatal("ParseDeviceID: want ok for legacy format")
	}
	if info.DeviceType != TypeUnknown || info.Platform != PlatformUnknown {
		t.Fatalf("info = %+v, want unknown/unknown", info)
	}
}

func TestParseDeviceID_TransitionalFormatInfersDesktopType(t *testing.T) {
	info, ok := ParseDeviceID("linux-a1b2c3d4")
	if !ok {
		t.Fatal("ParseDeviceID: want ok for transitional format")
	}
	if info.DeviceType != TypeDesktop || info.Platform != PlatformLinux {
		t.Fatalf("info = %+v, want desktop/linux", info)
	}
}

func TestParseDeviceID_RejectsEmpty(t *testing.T) {
	if _, ok := ParseDeviceID(""); ok {
		t.Fatal("ParseDeviceID(\"\"): want not ok")
	}
}

func TestIdentify_UpgradesIPadUAToTablet(t *testing.T) {
	info, ok := Identify("mobile-ios-a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)")
	if !ok {
		t.Fatal("Identify: want ok")
	}
	if info.DeviceType != TypeTablet {
		t.Fatalf("DeviceType = %v, want tablet", info.DeviceType)
	}
}

func TestIdentify_AndroidWithoutMobileTokenIsTablet(t *testing.T) {
	info, ok := Identify("mobile-android-uuid1", "Mozilla/5.0 (Linux; Android 13)")
	if !ok {
		t.Fatal("Identify: want ok")
	}
	if info.DeviceType != TypeTablet {
		t.Fatalf("DeviceType = %v, want tablet", info.DeviceType)
	}
}

func TestIdentify_LeavesConfidentDesktopTypeAlone(t *testing.T) {
	info, ok := Identify("desktop-windows-uuid1", "Mozilla/5.0 (iPad)")
	if !ok {
		t.Fatal("Identify: want ok")
	}
	if info.DeviceType != TypeDesktop {
		t.Fatalf("DeviceType = %v, want desktop (UA should not override a confident type)", info.DeviceType)
	}
}

func TestName_KnownCombination(t *testing.T) {
	if got := Name(Info{DeviceType: TypeMobile, Platform: PlatformIOS}); got != "iPhone" {
		t.Fatalf("Name = %q, want iPhone", got)
	}
}

func TestNew_RoundTripsThroughParseDeviceID(t *testing.T) {
	id := New(TypeDesktop, PlatformMacOS)
	info, ok := ParseDeviceID(id)
	if !ok {
		t.Fatalf("ParseDeviceID(%q): want ok", id)
	}
	if info.DeviceType != TypeDesktop || info.Platform != PlatformMacOS {
		t.Fatalf("round-tripped info = %+v", info)
	}
}

package intake

import (
	"testing"

	"github.com/behrlich/go-usbip/internal/constants"
	"github.com/behrlich/go-usbip/internal/outstanding"
	"github.com/behrlich/go-usbip/internal/wire"
)

func TestDispatchSelectConfiguration(t *testing.T) {
	urb := &URB{Function: FunctionSelectConfiguration, ConfigValue: 1, Handle: "h1"}
	plan, err := Dispatch(urb)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if plan.Kind != outstanding.KindSetConfig {
		t.Errorf("Kind = %v, want KindSetConfig", plan.Kind)
	}
	if plan.Direction != constants.DirOut {
		t.Errorf("Direction = %v, want DirOut", plan.Direction)
	}
	if plan.Setup.Request != wire.ReqSetConfiguration {
		t.Errorf("Setup.Request = %#x, want SET_CONFIGURATION", plan.Setup.Request)
	}
	if plan.Setup.Value != 1 {
		t.Errorf("Setup.Value = %d, want 1", plan.Setup.Value)
	}
	if !plan.IsFunctionSelect {
		t.Error("IsFunctionSelect = false, want true")
	}
}

func TestDispatchSelectInterface(t *testing.T) {
	urb := &URB{Function: FunctionSelectInterface, InterfaceValue: 2, AlternateSetting: 3}
	plan, err := Dispatch(urb)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if plan.Kind != outstanding.KindSetInterface {
		t.Errorf("Kind = %v, want KindSetInterface", plan.Kind)
	}
	if plan.Setup.Request != wire.ReqSetInterface {
		t.Errorf("Setup.Request = %#x, want SET_INTERFACE", plan.Setup.Request)
	}
	if plan.Setup.Value != 3 || plan.Setup.Index != 2 {
		t.Errorf("Setup.Value/Index = %d/%d, want 3/2", plan.Setup.Value, plan.Setup.Index)
	}
}

func TestDispatchControlTransferDirectionFromSetup(t *testing.T) {
	urb := &URB{
		Function:     FunctionControlTransfer,
		EndpointType: EndpointControl,
		Setup:        wire.SetupPacket{RequestType: 0x80, Request: 0x06, Length: 18},
	}
	plan, err := Dispatch(urb)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if plan.Direction != constants.DirIn {
		t.Errorf("Direction = %v, want DirIn (derived from bmRequestType)", plan.Direction)
	}
}

func TestDispatchNormalizesTransferFlags(t *testing.T) {
	urb := &URB{
		Function:       FunctionBulkOrInterruptTransfer,
		EndpointType:   EndpointBulk,
		Direction:      constants.DirIn,
		TransferBuffer: make([]byte, 4),
		TransferFlags:  constants.FlagShortTransferOK, // local-only bit, plus no direction bit set
	}
	plan, err := Dispatch(urb)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if plan.TransferFlags&constants.FlagShortTransferOK != 0 {
		t.Error("TransferFlags still carries the local-only short-transfer-ok bit")
	}
	if plan.TransferFlags&constants.FlagDirectionIn == 0 {
		t.Error("TransferFlags direction bit not recomputed from endpoint direction (IN)")
	}

	urb.Direction = constants.DirOut
	urb.TransferFlags = constants.FlagDirectionIn // stale/wrong bit from the host URB
	plan, err = Dispatch(urb)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if plan.TransferFlags&constants.FlagDirectionIn != 0 {
		t.Error("TransferFlags direction bit not cleared for an OUT transfer")
	}
}

func TestDispatchControlTransferWrongEndpointType(t *testing.T) {
	urb := &URB{Function: FunctionControlTransfer, EndpointType: EndpointBulk}
	if _, err := Dispatch(urb); err != ErrInvalidParameter {
		t.Errorf("Dispatch() error = %v, want ErrInvalidParameter", err)
	}
}

func TestDispatchBulkOrInterrupt(t *testing.T) {
	for _, ept := range []EndpointType{EndpointBulk, EndpointInterrupt} {
		urb := &URB{Function: FunctionBulkOrInterruptTransfer, EndpointType: ept, Direction: constants.DirOut, TransferBuffer: []byte{1, 2, 3}}
		plan, err := Dispatch(urb)
		if err != nil {
			t.Fatalf("Dispatch(%v) returned error: %v", ept, err)
		}
		if plan.Kind != outstanding.KindBulkOrInterrupt {
			t.Errorf("Kind = %v, want KindBulkOrInterrupt", plan.Kind)
		}
	}

	urb := &URB{Function: FunctionBulkOrInterruptTransfer, EndpointType: EndpointIsochronous}
	if _, err := Dispatch(urb); err != ErrInvalidParameter {
		t.Errorf("Dispatch() error = %v, want ErrInvalidParameter", err)
	}
}

func TestDispatchIsochTransfer(t *testing.T) {
	urb := &URB{
		Function:       FunctionIsochTransfer,
		EndpointType:   EndpointIsochronous,
		Direction:      constants.DirOut,
		TransferBuffer: make([]byte, 100),
		IsoOffsets:     []uint32{0, 50},
	}
	plan, err := Dispatch(urb)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if plan.TransferFlags&constants.FlagStartIsoASAP == 0 {
		t.Error("TransferFlags does not have FlagStartIsoASAP forced on")
	}

	urb.IsoOffsets = nil
	if _, err := Dispatch(urb); err != ErrInvalidParameter {
		t.Errorf("Dispatch() with no offsets error = %v, want ErrInvalidParameter", err)
	}

	urb.IsoOffsets = []uint32{0, 50}
	urb.EndpointType = EndpointBulk
	if _, err := Dispatch(urb); err != ErrInvalidParameter {
		t.Errorf("Dispatch() with wrong endpoint type error = %v, want ErrInvalidParameter", err)
	}
}

func TestDispatchNotSupported(t *testing.T) {
	for _, fn := range []URBFunction{
		FunctionAbortPipe,
		FunctionGetStatus,
		FunctionGetDescriptor,
		FunctionGetConfiguration,
		FunctionVendorOrClass,
		FunctionReserved,
	} {
		urb := &URB{Function: fn}
		if _, err := Dispatch(urb); err != ErrNotSupported {
			t.Errorf("Dispatch(%v) error = %v, want ErrNotSupported", fn, err)
		}
	}
}

// Package regfile models the bus-mapped register interface: a single
// request/acknowledge slave that exposes control, status, result and
// data-readback registers, routes parameter writes into the inference
// engine's weight memory, and arbitrates the shared read ports between
// internal consumers and the external controller.
package regfile

// Register byte offsets from the slave base address.
const (
	RegCtrl        = 0x00 // R/W: [0]=enable, [10:8]=irq enable mask
	RegStatus      = 0x04 // R:   engine busy flags and alarm
	RegClassResult = 0x08 // R:   [1:0]=class id, [9:2]=confidence
	RegAlarmCfg    = 0x0C // R/W: [7:0]=threshold, [11:8]=debounce count
	RegBinData     = 0x10 // R: auto-inc magnitude, W: set cursor
	RegFeatureData = 0x14 // R: auto-inc feature, W: set cursor
	RegIRQFlags    = 0x18 // R/W1C: [0]=class done, [1]=alarm
	RegClkDiv      = 0x1C // R/W: [15:0] acquisition clock divider
	RegParamBase   = 0x20 // W: packed parameter write window start
	RegParamEnd    = 0x74 // last offset of the parameter window
)

// STATUS register bits.
const (
	StatusEnable  = 1 << 0
	StatusFFTBusy = 1 << 1
	StatusNNBusy  = 1 << 2
	StatusFEBusy  = 1 << 3
	StatusAlarm   = 1 << 4
)

// IRQ_FLAGS register bits.
const (
	IRQClassDone = 1 << 0
	IRQAlarm     = 1 << 1

	irqMask = IRQClassDone | IRQAlarm
)

const (
	ctrlMask     = 0x0701
	alarmCfgMask = 0x0FFF

	binCursorMask  = 0x1F
	featCursorMask = 0x07
)

// Transaction is one bus request. When both Write and Read are
// asserted, the write wins.
type Transaction struct {
	Addr     uint32
	Data     uint32
	ByteMask uint8 // 4-bit lane mask; writes touch only selected bytes
	Write    bool
	Read     bool
}

// BinPort reads transform magnitude bins.
type BinPort interface {
	Bin(i int) uint16
}

// FeaturePort reads feature vector slots.
type FeaturePort interface {
	Feature(i int) uint8
}

// ParamWriter sinks parameter bytes into the weight memory.
type ParamWriter interface {
	Write(addr int, v int8) bool
}

// BinConsumer is the internal consumer of the transform read port
// (the feature engine). While busy it owns the port.
type BinConsumer interface {
	Busy() bool
	LastGranted() uint16
}

// FeatureConsumer is the internal consumer of the feature read port
// (the inference engine). While busy it owns the port.
type FeatureConsumer interface {
	Busy() bool
	LastGranted() uint8
}

// File is the register file state. One transaction may be outstanding;
// it completes with a single acknowledge pulse on the following tick.
type File struct {
	bins   BinPort
	feats  FeaturePort
	params ParamWriter

	binConsumer  BinConsumer
	featConsumer FeatureConsumer

	status func() uint32

	ctrl        uint32
	alarmCfg    uint32
	clkDiv      uint16
	irqFlags    uint32
	classResult uint32

	binCursor  uint8
	featCursor uint8

	pending    Transaction
	hasPending bool

	ack   bool
	rdata uint32
}

// New returns a register file wired to the given ports. The status
// callback composes the STATUS word from live engine state.
func New(bins BinPort, feats FeaturePort, params ParamWriter, status func() uint32) *File {
	return &File{bins: bins, feats: feats, params: params, status: status}
}

// SetConsumers attaches the internal read-port consumers used for
// arbitration.
func (f *File) SetConsumers(bin BinConsumer, feat FeatureConsumer) {
	f.binConsumer = bin
	f.featConsumer = feat
}

// Submit presents a bus request. It is accepted only when no other
// transaction is outstanding; the result arrives with the acknowledge
// pulse on the next tick.
func (f *File) Submit(tx Transaction) bool {
	if f.hasPending {
		return false
	}
	f.pending = tx
	f.hasPending = true
	return true
}

// Ack reports the single-tick acknowledge pulse.
func (f *File) Ack() bool { return f.ack }

// Data returns the read data latched with the acknowledge.
func (f *File) Data() uint32 { return f.rdata }

// ParamWritePending reports whether the outstanding transaction targets
// the parameter window. The core gates inference starts on this.
func (f *File) ParamWritePending() bool {
	return f.hasPending && f.pending.Write && inParamWindow(f.pending.Addr)
}

// Step advances one tick, completing any outstanding transaction.
func (f *File) Step() {
	f.ack = false
	if !f.hasPending {
		return
	}
	tx := f.pending
	f.hasPending = false

	f.rdata = 0
	if tx.Write {
		f.write(tx)
	} else if tx.Read {
		f.rdata = f.read(tx.Addr)
	}
	f.ack = true
}

func inParamWindow(addr uint32) bool {
	return addr >= RegParamBase && addr <= RegParamEnd
}

// applyMask merges val into old on the byte lanes selected by mask.
func applyMask(old, val uint32, mask uint8) uint32 {
	out := old
	for lane := uint(0); lane < 4; lane++ {
		if mask&(1<<lane) != 0 {
			shift := 8 * lane
			out &^= 0xFF << shift
			out |= val & (0xFF << shift)
		}
	}
	return out
}

func (f *File) write(tx Transaction) {
	switch {
	case tx.Addr == RegCtrl:
		f.ctrl = applyMask(f.ctrl, tx.Data, tx.ByteMask) & ctrlMask
	case tx.Addr == RegAlarmCfg:
		f.alarmCfg = applyMask(f.alarmCfg, tx.Data, tx.ByteMask) & alarmCfgMask
	case tx.Addr == RegClkDiv:
		f.clkDiv = uint16(applyMask(uint32(f.clkDiv), tx.Data, tx.ByteMask))
	case tx.Addr == RegBinData:
		// writing the readback register repositions the cursor only
		f.binCursor = uint8(applyMask(uint32(f.binCursor), tx.Data, tx.ByteMask)) & binCursorMask
	case tx.Addr == RegFeatureData:
		f.featCursor = uint8(applyMask(uint32(f.featCursor), tx.Data, tx.ByteMask)) & featCursorMask
	case tx.Addr == RegIRQFlags:
		// write-1-to-clear
		f.irqFlags &^= applyMask(0, tx.Data, tx.ByteMask) & irqMask
	case inParamWindow(tx.Addr):
		// packed parameter write: address in [15:8], data byte in [7:0];
		// addresses beyond the 212-entry memory are ignored
		word := applyMask(0, tx.Data, tx.ByteMask)
		f.params.Write(int(word>>8&0xFF), int8(word&0xFF))
	}
	// reserved offsets: no-op
}

func (f *File) read(addr uint32) uint32 {
	switch addr {
	case RegCtrl:
		return f.ctrl
	case RegStatus:
		if f.status != nil {
			return f.status()
		}
		return 0
	case RegClassResult:
		return f.classResult
	case RegAlarmCfg:
		return f.alarmCfg
	case RegClkDiv:
		return uint32(f.clkDiv)
	case RegIRQFlags:
		return f.irqFlags
	case RegBinData:
		// busy internal consumer wins the port; the controller sees the
		// value most recently granted to the engine and its cursor
		// holds still
		if f.binConsumer != nil && f.binConsumer.Busy() {
			return uint32(f.binConsumer.LastGranted())
		}
		v := uint32(f.bins.Bin(int(f.binCursor)))
		f.binCursor = (f.binCursor + 1) & binCursorMask
		return v
	case RegFeatureData:
		if f.featConsumer != nil && f.featConsumer.Busy() {
			return uint32(f.featConsumer.LastGranted())
		}
		v := uint32(f.feats.Feature(int(f.featCursor)))
		f.featCursor = (f.featCursor + 1) & featCursorMask
		return v
	}
	// reserved (and the write-only parameter window) read as zero
	return 0
}

// Enabled reports CTRL bit 0.
func (f *File) Enabled() bool { return f.ctrl&1 != 0 }

// ClkDiv returns the acquisition clock divider.
func (f *File) ClkDiv() uint16 { return f.clkDiv }

// AlarmThreshold returns ALARM_CFG bits [7:0].
func (f *File) AlarmThreshold() uint8 { return uint8(f.alarmCfg & 0xFF) }

// DebounceCount returns ALARM_CFG bits [11:8].
func (f *File) DebounceCount() uint8 { return uint8(f.alarmCfg >> 8 & 0xF) }

// SetClassResult latches a classification into CLASS_RESULT.
func (f *File) SetClassResult(classID, confidence uint8) {
	f.classResult = uint32(classID&0x3) | uint32(confidence)<<2
}

// ClassResult unpacks the latched CLASS_RESULT register.
func (f *File) ClassResult() (classID, confidence uint8) {
	return uint8(f.classResult & 0x3), uint8(f.classResult >> 2 & 0xFF)
}

// RaiseIRQ sets event bits in IRQ_FLAGS.
func (f *File) RaiseIRQ(bits uint32) { f.irqFlags |= bits & irqMask }

// IRQFlags returns the pending event flags.
func (f *File) IRQFlags() uint32 { return f.irqFlags }

// IRQLine reports the wired interrupt output: any pending flag whose
// enable bit in CTRL[10:8] is set.
func (f *File) IRQLine() bool {
	return f.irqFlags&(f.ctrl>>8)&irqMask != 0
}

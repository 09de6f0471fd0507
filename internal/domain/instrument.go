package domain

// InstrumentClass 可交易产品类别
// 每个类别有独立的持仓变更订阅流
type InstrumentClass string

const (
	InstrumentCFD           InstrumentClass = "cfd"
	InstrumentForex         InstrumentClass = "forex"
	InstrumentCrypto        InstrumentClass = "crypto"
	InstrumentDigitalOption InstrumentClass = "digital-option"
	InstrumentBinaryOption  InstrumentClass = "binary-option"
)

// AllInstrumentClasses 账户切换时需要整批换绑订阅的产品类别（顺序固定）
func AllInstrumentClasses() []InstrumentClass {
	return []InstrumentClass{
		InstrumentCFD,
		InstrumentForex,
		InstrumentCrypto,
		InstrumentDigitalOption,
		InstrumentBinaryOption,
	}
}

// Valid 检查是否为支持的产品类别
func (c InstrumentClass) Valid() bool {
	switch c {
	case InstrumentCFD, InstrumentForex, InstrumentCrypto, InstrumentDigitalOption, InstrumentBinaryOption:
		return true
	}
	return false
}

package mapvar

// DictOp is the closed set of guest mapping methods the dispatch layer
// models. Guest method names are parsed into this enum once at the dispatch
// boundary; every switch beyond it is over variants, with an explicit
// unsupported arm.
type DictOp int

const (
	DictUnknown DictOp = iota
	DictGetItem
	DictSetItem
	DictSetAttr
	DictGetAttr
	DictItems
	DictKeys
	DictValues
	DictLen
	DictContains
	DictGet
	DictPop
	DictUpdate
	DictToTuple
)

// ParseDictOp maps a guest method name onto the operation enum.
func ParseDictOp(name string) (DictOp, bool) {
	switch name {
	case "__getitem__":
		return DictGetItem, true
	case "__setitem__":
		return DictSetItem, true
	case "__setattr__":
		return DictSetAttr, true
	case "__getattr__":
		return DictGetAttr, true
	case "items":
		return DictItems, true
	case "keys":
		return DictKeys, true
	case "values":
		return DictValues, true
	case "__len__":
		return DictLen, true
	case "__contains__":
		return DictContains, true
	case "get":
		return DictGet, true
	case "pop":
		return DictPop, true
	case "update":
		return DictUpdate, true
	case "to_tuple":
		return DictToTuple, true
	default:
		return DictUnknown, false
	}
}

// String returns the guest method name of the operation.
func (op DictOp) String() string {
	switch op {
	case DictUnknown:
		return "unknown"
	case DictGetItem:
		return "__getitem__"
	case DictSetItem:
		return "__setitem__"
	case DictSetAttr:
		return "__setattr__"
	case DictGetAttr:
		return "__getattr__"
	case DictItems:
		return "items"
	case DictKeys:
		return "keys"
	case DictValues:
		return "values"
	case DictLen:
		return "__len__"
	case DictContains:
		return "__contains__"
	case DictGet:
		return "get"
	case DictPop:
		return "pop"
	case DictUpdate:
		return "update"
	case DictToTuple:
		return "to_tuple"
	default:
		panic(op)
	}
}

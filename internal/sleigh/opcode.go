package sleigh

import "fmt"

// Opcode identifies a pcode operation. Values match the engine's numbering.
type Opcode uint32

const (
	OpCopy Opcode = iota + 1
	OpLoad
	OpStore
	OpBranch
	OpCBranch
	OpBranchInd
	OpCall
	OpCallInd
	OpCallOther
	OpReturn
	OpIntEqual
	OpIntNotEqual
	OpIntSLess
	OpIntSLessEqual
	OpIntLess
	OpIntLessEqual
	OpIntZExt
	OpIntSExt
	OpIntAdd
	OpIntSub
	OpIntCarry
	OpIntSCarry
	OpIntSBorrow
	OpInt2Comp
	OpIntNegate
	OpIntXor
	OpIntAnd
	OpIntOr
	OpIntLeft
	OpIntRight
	OpIntSRight
	OpIntMult
	OpIntDiv
	OpIntSDiv
	OpIntRem
	OpIntSRem
	OpBoolNegate
	OpBoolXor
	OpBoolAnd
	OpBoolOr
	OpFloatEqual
	OpFloatNotEqual
	OpFloatLess
	OpFloatLessEqual
	_ // slot 45 is unused
	OpFloatNan
	OpFloatAdd
	OpFloatDiv
	OpFloatMult
	OpFloatSub
	OpFloatNeg
	OpFloatAbs
	OpFloatSqrt
	OpFloatInt2Float
	OpFloatFloat2Float
	OpFloatTrunc
	OpFloatCeil
	OpFloatFloor
	OpFloatRound
	OpMultiEqual
	OpIndirect
	OpPiece
	OpSubPiece
	OpCast
	OpPtrAdd
	OpPtrSub
	OpSegmentOp
	OpCPoolRef
	OpNew
	OpInsert
	OpExtract
	OpPopCount
	OpMax
)

var opcodeNames = [...]string{
	"BLANK", "COPY", "LOAD", "STORE", "BRANCH", "CBRANCH", "BRANCHIND",
	"CALL", "CALLIND", "CALLOTHER", "RETURN", "INT_EQUAL", "INT_NOTEQUAL",
	"INT_SLESS", "INT_SLESSEQUAL", "INT_LESS", "INT_LESSEQUAL", "INT_ZEXT",
	"INT_SEXT", "INT_ADD", "INT_SUB", "INT_CARRY", "INT_SCARRY",
	"INT_SBORROW", "INT_2COMP", "INT_NEGATE", "INT_XOR", "INT_AND", "INT_OR",
	"INT_LEFT", "INT_RIGHT", "INT_SRIGHT", "INT_MULT", "INT_DIV", "INT_SDIV",
	"INT_REM", "INT_SREM", "BOOL_NEGATE", "BOOL_XOR", "BOOL_AND", "BOOL_OR",
	"FLOAT_EQUAL", "FLOAT_NOTEQUAL", "FLOAT_LESS", "FLOAT_LESSEQUAL",
	"UNUSED1", "FLOAT_NAN", "FLOAT_ADD", "FLOAT_DIV", "FLOAT_MULT",
	"FLOAT_SUB", "FLOAT_NEG", "FLOAT_ABS", "FLOAT_SQRT", "INT2FLOAT",
	"FLOAT2FLOAT", "TRUNC", "CEIL", "FLOOR", "ROUND", "MULTIEQUAL",
	"INDIRECT", "PIECE", "SUBPIECE", "CAST", "PTRADD", "PTRSUB",
	"SEGMENTOP", "CPOOLREF", "NEW", "INSERT", "EXTRACT", "POPCOUNT",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", uint32(o))
}

// Valid reports whether o names a defined operation.
func (o Opcode) Valid() bool {
	return o >= OpCopy && o < OpMax && o != 45
}

// IsBranch reports whether o transfers control.
func (o Opcode) IsBranch() bool {
	switch o {
	case OpBranch, OpCBranch, OpBranchInd, OpCall, OpCallInd, OpReturn:
		return true
	}
	return false
}

package conduit

// MethodID indexes the fixed request-method table below. The order matches
// the callback-provided integer index of the push parser this engine is
// written against; it must never be reordered independently of that parser.
type MethodID uint8

const (
	MethodDELETE MethodID = iota
	MethodGET
	MethodHEAD
	MethodPOST
	MethodPUT
	MethodCONNECT
	MethodOPTIONS
	MethodTRACE
	MethodCOPY
	MethodLOCK
	MethodMKCOL
	MethodMOVE
	MethodPROPFIND
	MethodPROPPATCH
	MethodSEARCH
	MethodUNLOCK
	MethodREPORT
	MethodMKACTIVITY
	MethodCHECKOUT
	MethodMERGE
	MethodMSEARCH
	MethodNOTIFY
	MethodSUBSCRIBE
	MethodUNSUBSCRIBE
	MethodPATCH
	MethodPURGE

	methodCount
)

// methodTable is the fixed uppercase method table. Index i is MethodID(i).
var methodTable = [methodCount]string{
	MethodDELETE:       "DELETE",
	MethodGET:          "GET",
	MethodHEAD:         "HEAD",
	MethodPOST:         "POST",
	MethodPUT:          "PUT",
	MethodCONNECT:      "CONNECT",
	MethodOPTIONS:      "OPTIONS",
	MethodTRACE:        "TRACE",
	MethodCOPY:         "COPY",
	MethodLOCK:         "LOCK",
	MethodMKCOL:        "MKCOL",
	MethodMOVE:         "MOVE",
	MethodPROPFIND:     "PROPFIND",
	MethodPROPPATCH:    "PROPPATCH",
	MethodSEARCH:       "SEARCH",
	MethodUNLOCK:       "UNLOCK",
	MethodREPORT:       "REPORT",
	MethodMKACTIVITY:   "MKACTIVITY",
	MethodCHECKOUT:     "CHECKOUT",
	MethodMERGE:        "MERGE",
	MethodMSEARCH:      "M-SEARCH",
	MethodNOTIFY:       "NOTIFY",
	MethodSUBSCRIBE:    "SUBSCRIBE",
	MethodUNSUBSCRIBE:  "UNSUBSCRIBE",
	MethodPATCH:        "PATCH",
	MethodPURGE:        "PURGE",
}

// String returns the canonical uppercase token for a method index, or ""
// if id is out of range.
func (id MethodID) String() string {
	if int(id) >= len(methodTable) {
		return ""
	}
	return methodTable[id]
}

// methodByToken recognizes one of the fixed table's tokens and reports its
// index. Anything else is rejected at the request-line before headers are
// ever examined, matching the push parser's own method-validation point.
func methodByToken(tok []byte) (MethodID, bool) {
	for i, name := range methodTable {
		if string(tok) == name {
			return MethodID(i), true
		}
	}
	return 0, false
}

package quota

import "errors"

var ErrQuotaExceeded = errors.New("scan quota exceeded")

type OperatorQuota struct {
	ScanQuota int
	ScanUsed  int
}

func (o *OperatorQuota) CanScan() bool {
	return o.ScanUsed < o.ScanQuota
}

func (o *OperatorQuota) IncrementUsed() error {
	if !o.CanScan() {
		return ErrQuotaExceeded
	}
	o.ScanUsed++
	return nil
}

func (o *OperatorQuota) Used() int  { return o.ScanUsed }
func (o *OperatorQuota) Quota() int { return o.ScanQuota }

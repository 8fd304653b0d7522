package storage

import "github.com/suddencreator/kibank/pkg/common"

// BankStorage serves random-access payload reads over an opened bank.
type BankStorage interface {
	ReadFile(entry *common.BankEntry, dest []byte, offset int64) (int, error)
	Index() *common.BankIndex
	Cleanup() error
}

type BankStorageOpts struct {
	BankPath string
}

func NewBankStorage(opts BankStorageOpts) (BankStorage, error) {
	return NewLocalBankStorage(opts)
}

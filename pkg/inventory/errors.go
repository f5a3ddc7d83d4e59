package inventory

import (
	"errors"
	"fmt"
)

// Common inventory errors
// 共通の在庫エラー定義

var (
	// ErrProductNotFound is returned by the catalog for unknown product ids
	// 商品が存在しない場合のエラー
	ErrProductNotFound = errors.New("商品が見つかりません")

	// ErrLocationNotFound is returned when a location doesn't exist
	// ロケーションが存在しない場合のエラー
	ErrLocationNotFound = errors.New("ロケーションが見つかりません")

	// ErrLocationInactive is returned when stock is routed to a deactivated location
	// 無効化されたロケーションが指定された場合のエラー
	ErrLocationInactive = errors.New("ロケーションは無効化されています")

	// ErrLocationInUse is returned when a location with open transfers is deactivated
	// 未完了の移動依頼があるロケーションを無効化しようとした場合のエラー
	ErrLocationInUse = errors.New("ロケーションは未完了の移動依頼で使用中です")

	// ErrDuplicateLocation is returned when trying to create a location that already exists
	// 既に存在するロケーションを作成しようとした場合のエラー
	ErrDuplicateLocation = errors.New("ロケーションは既に存在します")

	// ErrItemNotFound is returned by storage when a ledger row doesn't exist
	// 在庫台帳行が存在しない場合のエラー
	ErrItemNotFound = errors.New("在庫記録が見つかりません")

	// ErrDuplicateItem is returned by storage when a ledger row already exists
	// 既に存在する在庫台帳行を作成しようとした場合のエラー
	ErrDuplicateItem = errors.New("在庫記録は既に存在します")

	// ErrInsufficientStock is returned by the transfer workflow when the source can't cover a line
	// 在庫不足の場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrAlertNotFound is returned when an alert doesn't exist
	// アラートが存在しない場合のエラー
	ErrAlertNotFound = errors.New("アラートが見つかりません")

	// ErrAlertResolved is returned when resolving an alert twice
	// 既に解決済みのアラートの場合のエラー
	ErrAlertResolved = errors.New("アラートは既に解決済みです")

	// ErrTransferNotFound is returned when a transfer doesn't exist
	// 移動依頼が存在しない場合のエラー
	ErrTransferNotFound = errors.New("移動依頼が見つかりません")

	// ErrInvalidTransition is returned for out-of-order transfer status changes
	// 不正なステータス遷移の場合のエラー
	ErrInvalidTransition = errors.New("不正なステータス遷移です")

	// ErrMissingActor is returned when a mutation carries no actor id
	// 操作者IDが指定されていない場合のエラー
	ErrMissingActor = errors.New("操作者IDが指定されていません")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// TransitionError describes a rejected transfer status change
// 拒否されたステータス遷移
type TransitionError struct {
	TransferID int64          `json:"transfer_id"`
	From       TransferStatus `json:"from"`
	To         TransferStatus `json:"to"`
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("移動依頼 %d: %s から %s への遷移はできません", e.TransferID, e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e StorageError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewTransitionError creates a new transition error
// 新しいステータス遷移エラーを作成
func NewTransitionError(transferID int64, from, to TransferStatus) *TransitionError {
	return &TransitionError{
		TransferID: transferID,
		From:       from,
		To:         to,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package errors

// Reason names the domain condition behind a failure so callers can branch
// on it without parsing messages.
type Reason string

const (
	ReasonNoSuchStore          Reason = "NO_SUCH_STORE"
	ReasonStoreClosed          Reason = "STORE_CLOSED"
	ReasonStoreNameDuplicated  Reason = "STORE_NAME_DUPLICATED"
	ReasonNoSuchItem           Reason = "NO_SUCH_ITEM"
	ReasonItemAlreadyDeleted   Reason = "ITEM_ALREADY_DELETED"
	ReasonNotEnoughStock       Reason = "NOT_ENOUGH_STOCK"
	ReasonNoSuchStoreTable     Reason = "NO_SUCH_STORE_TABLE"
	ReasonTableAlreadyOccupied Reason = "TABLE_ALREADY_OCCUPIED"
	ReasonTableAlreadyDeleted  Reason = "STORE_TABLE_ALREADY_DELETED"
	ReasonTableUsing           Reason = "STORE_TABLE_USING"
	ReasonOrderStillActive     Reason = "STILL_ORDER_OR_ORDER_ITEM_EXIST"

	ReasonNoSuchOrder            Reason = "NO_SUCH_ORDER"
	ReasonOrderAlreadyDeleted    Reason = "ORDER_ALREADY_DELETED"
	ReasonOrderAlreadyPaid       Reason = "ORDER_ALREADY_PAID"
	ReasonOrderNotInProgress     Reason = "ORDER_NOT_IN_PROGRESS"
	ReasonOrderAlreadyHasEndTime Reason = "ORDER_ALREADY_HAS_END_TIME"
	ReasonOrderHasNoOrderItem    Reason = "ORDER_HAS_NO_ORDER_ITEM"

	ReasonNoSuchOrderItem         Reason = "NO_SUCH_ORDER_ITEM"
	ReasonOrderItemAlreadyDeleted Reason = "ORDER_ITEM_ALREADY_DELETED"
	ReasonOrderItemAlreadyPaid    Reason = "ORDER_ITEM_ALREADY_PAID"

	ReasonNoSuchPayment              Reason = "NO_SUCH_PAYMENT"
	ReasonPaymentAlreadyExists       Reason = "PAYMENT_ALREADY_EXISTS"
	ReasonPaymentAlreadySuccess      Reason = "PAYMENT_ALREADY_SUCCESS"
	ReasonPaidPaymentAmountExceeded  Reason = "PAID_PAYMENT_AMOUNT_EXCEEDED"
	ReasonPaymentMethodsExist        Reason = "PAYMENT_METHODS_EXIST"
	ReasonPaymentMethodAmountExceeds Reason = "PAYMENT_METHOD_AMOUNT_EXCEEDS_LEFT_TO_PAY"
	ReasonNoSuchPaymentMethod        Reason = "NO_SUCH_PAYMENT_METHOD"
	ReasonAlreadyPaid                Reason = "ALREADY_PAID"
	ReasonCardChargeNotCompleted     Reason = "CARD_CHARGE_NOT_COMPLETED"
)

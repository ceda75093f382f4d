package farmerr

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. The key doubles as the English text.
const (
	MsgNotFound                 = "%s %v not found"
	MsgInvalidField             = "invalid %s: %s"
	MsgAmountPositive           = "amount must be positive"
	MsgQuantityPositive         = "quantity must be positive"
	MsgProjectNotAcceptingCosts = "project %d does not accept costs in status %s"
	MsgPaymentAccountRequired   = "payment account is required"
	MsgDirectScopeRequired      = "a direct cost needs at least one sector, unit or house"
	MsgCostAccountRequired      = "cost account is required"
	MsgCostNotDraft             = "cost %s can only be changed in draft"
	MsgCostAlreadyCancelled     = "cost %s is already cancelled"
	MsgCostResetFromCancelled   = "only cancelled costs can be reset to draft"
	MsgCostDelete               = "costs cannot be deleted, cancel them instead"
	MsgAssignmentDuplicate      = "house %d is already assigned to project %d"
	MsgHouseNotOnFarm           = "house %d does not belong to farm %d"
	MsgProductNotProduce        = "product %s is not a produce item"
	MsgAssignmentIncomplete     = "assignment %d needs a product and an expected quantity before harvesting"
	MsgStatusTransition         = "cannot %s a project in status %s"
	MsgReasonRequired           = "a reason is required"
	MsgAVCONotAllowed           = "AVCO can only be updated for in-progress or completed projects"
	MsgOrderTransition          = "cannot %s an order in state %s"
	MsgOrderNoLines             = "the order has no lines"
	MsgOrderNoTargets           = "the order has no target sectors, units or houses"
	MsgJustificationShort       = "justification must be at least %d characters"
	MsgInsufficientStock        = "insufficient stock for %s: requested %.2f, available %.2f"
	MsgDirectOrderJournal       = "a direct order needs a linked journal entry before accounting approval"
	MsgOrderAccounts            = "product %s has no order accounts configured"
	MsgOrderProjectState        = "orders require an in-progress project"
	MsgNoLocation               = "no %s location could be resolved"
	MsgCancelTransfer           = "could not cancel transfer %s"
	MsgUnbalanced               = "journal entry is not balanced"
	MsgHarvestCancelled         = "harvest entry %s is already cancelled"
	MsgHarvestNotCancelled      = "harvest entry %s is not cancelled"
)

func init() {
	ar := map[string]string{
		MsgNotFound:                 "%s %v غير موجود",
		MsgInvalidField:             "قيمة غير صالحة للحقل %s: %s",
		MsgAmountPositive:           "يجب أن يكون المبلغ موجبًا",
		MsgQuantityPositive:         "يجب أن تكون الكمية موجبة",
		MsgProjectNotAcceptingCosts: "المشروع %d لا يقبل التكاليف في الحالة %s",
		MsgPaymentAccountRequired:   "حساب الدفع مطلوب",
		MsgDirectScopeRequired:      "التكلفة المباشرة تحتاج إلى قطاع أو وحدة أو بيت واحد على الأقل",
		MsgCostAccountRequired:      "حساب التكلفة مطلوب",
		MsgCostNotDraft:             "لا يمكن تعديل التكلفة %s إلا في حالة المسودة",
		MsgCostAlreadyCancelled:     "التكلفة %s ملغاة بالفعل",
		MsgCostResetFromCancelled:   "لا يمكن إعادة التكلفة إلى مسودة إلا إذا كانت ملغاة",
		MsgCostDelete:               "لا يمكن حذف التكاليف، قم بإلغائها بدلاً من ذلك",
		MsgAssignmentDuplicate:      "البيت %d مخصص بالفعل للمشروع %d",
		MsgHouseNotOnFarm:           "البيت %d لا ينتمي إلى المزرعة %d",
		MsgProductNotProduce:        "المنتج %s ليس من المحاصيل",
		MsgAssignmentIncomplete:     "التخصيص %d يحتاج إلى منتج وكمية متوقعة قبل الحصاد",
		MsgStatusTransition:         "لا يمكن تنفيذ %s على مشروع في الحالة %s",
		MsgReasonRequired:           "السبب مطلوب",
		MsgAVCONotAllowed:           "لا يمكن تحديث متوسط التكلفة إلا للمشاريع الجارية أو المكتملة",
		MsgOrderTransition:          "لا يمكن تنفيذ %s على طلب في الحالة %s",
		MsgOrderNoLines:             "الطلب لا يحتوي على بنود",
		MsgOrderNoTargets:           "الطلب لا يحدد قطاعات أو وحدات أو بيوت",
		MsgJustificationShort:       "يجب ألا يقل المبرر عن %d أحرف",
		MsgInsufficientStock:        "المخزون غير كافٍ للمنتج %s: المطلوب %.2f، المتاح %.2f",
		MsgDirectOrderJournal:       "الطلب المباشر يحتاج إلى قيد يومية مرتبط قبل الموافقة المحاسبية",
		MsgOrderAccounts:            "المنتج %s ليس له حسابات طلبات",
		MsgOrderProjectState:        "الطلبات تتطلب مشروعًا جاريًا",
		MsgNoLocation:               "تعذر تحديد موقع %s",
		MsgCancelTransfer:           "تعذر إلغاء التحويل %s",
		MsgUnbalanced:               "قيد اليومية غير متوازن",
		MsgHarvestCancelled:         "سجل الحصاد %s ملغي بالفعل",
		MsgHarvestNotCancelled:      "سجل الحصاد %s ليس ملغيًا",
	}
	for key, text := range ar {
		_ = message.SetString(language.Arabic, key, text)
	}
}

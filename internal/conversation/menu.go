package conversation

// Menu tokens are matched exactly against the incoming text.
const (
	BtnContactManager = "👨‍💼 Обратиться к менеджеру"
	BtnReportIssue    = "⚠️ Отчет о нарушении"
	BtnOrgInfo        = "🏢 Информация об организации"
	BtnSchedule       = "📅 График работы"
	BtnSalary         = "💰 Расчет ЗП"
	BtnBackToMenu     = "🔙 Главное меню"
	BtnCancel         = "❌ Отмена"
	BtnAttachYes      = "✅ Да, прикрепить"
	BtnAttachNo       = "❌ Нет, завершить"
	BtnFinishNoMedia  = "❌ Завершить без медиа"
	BtnFinishReport   = "✅ Завершить отчет"
	BtnAttachMore     = "📎 Прикрепить еще"
)

const (
	CommandStart  = "start"
	CommandCancel = "cancel"
)

// Keyboard is a reply keyboard, one slice per row.
type Keyboard [][]string

var (
	MainMenuKeyboard = Keyboard{
		{BtnContactManager},
		{BtnReportIssue},
		{BtnOrgInfo},
		{BtnSchedule, BtnSalary},
	}
	CancelKeyboard        = Keyboard{{BtnCancel}}
	MediaDecisionKeyboard = Keyboard{{BtnAttachYes, BtnAttachNo}}
	AttachMoreKeyboard    = Keyboard{{BtnAttachMore, BtnFinishReport}}
	FinishOnlyKeyboard    = Keyboard{{BtnFinishNoMedia}}
)

const (
	textWelcome = "Приветствую, %s!\nЯ бот технической поддержки. Выберите нужный вариант:"
	textChoose  = "Выберите нужный вариант в меню:"
	textAborted = "Действие отменено"

	textManagerPrompt    = "Опишите вашу проблему или вопрос. Менеджер свяжется с вами в ближайшее время."
	textManagerCancel    = "Диалог отменен"
	textManagerCreated   = "✅ Ваше обращение #%d принято! Менеджер свяжется с вами в течение 15 минут."
	textManagerNeedsText = "Пожалуйста, опишите вопрос текстом или нажмите «" + BtnCancel + "»."

	textReportPrompt      = "Отчет о нарушении #%d создан.\nОпишите нарушение и при необходимости прикрепите фото/видео:"
	textReportCancel      = "Создание отчета отменено"
	textReportSaved       = "✅ Описание добавлено к отчету #%d. Хотите прикрепить фото/видео?"
	textAttachPrompt      = "Прикрепите фото или видео нарушения:"
	textMediaStored       = "📎 Файл прикреплен к отчету #%d. Прикрепите еще или завершите отчет."
	textReportFinished    = "Отчет #%d завершен. Спасибо за бдительность!"
	textDecisionReprompt  = "Хотите прикрепить фото/видео к отчету?"
	textFileOutsideReport = "Чтобы прикрепить файл, начните «" + BtnReportIssue + "»."

	textOrgInfo = "🏢 Наша организация:\n" +
		"• Основана в 2010 году\n" +
		"• Специализация: IT решения\n" +
		"• Штат: 50+ сотрудников\n" +
		"• Контакты: +7 (XXX) XXX-XX-XX"
	textSchedule = "🕒 График работы сотрудников:\n" +
		"Пн-Пт: 9:00 - 18:00\n" +
		"Сб: 10:00 - 15:00\n" +
		"Вс: выходной\n" +
		"Обед: 13:00 - 14:00"
	textSalary = "💰 Расчет заработной платы:\n" +
		"• Оклад: согласно должности\n" +
		"• Премии: за выполнение KPI\n" +
		"• Надбавки: за стаж и проекты\n" +
		"• Аванс: 40% 15-го числа\n" +
		"• Основная выплата: 5-го числа"
)

// Driver-side failure replies; the session is left untouched.
const (
	TextMediaFailed = "⚠️ Не удалось сохранить файл. Попробуйте отправить его еще раз."
	TextFailed      = "⚠️ Произошла ошибка. Попробуйте еще раз."
)

// TextReportClosed is sent when staff already took the report out of open;
// the session returns to the main menu.
const TextReportClosed = "ℹ️ Этот отчет уже принят в работу, файлы к нему больше не прикрепляются. Чтобы отправить новые материалы, создайте новый отчет."

var infoReplies = map[string]string{
	BtnOrgInfo:  textOrgInfo,
	BtnSchedule: textSchedule,
	BtnSalary:   textSalary,
}

func isBack(text string) bool {
	return text == BtnCancel || text == BtnBackToMenu
}

func isFinish(text string) bool {
	return text == BtnAttachNo || text == BtnFinishNoMedia || text == BtnFinishReport
}

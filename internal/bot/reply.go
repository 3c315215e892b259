package bot

// User-facing replies, kept together so the dispatcher reads as flow.
const (
	replyMenu          = "What would you like to do?"
	replyAskName       = "Please enter the name of your cow. 🐄"
	replyAskPhoto      = "Great! Now please send a photo of your cow. 📸"
	replyAskIdentify   = "Please send a photo of the cow you want to identify. 🔍"
	replyNotACow       = "This doesn't appear to be a cow. Please send a photo of a cow. 🚫🐮"
	replyUnknownCow    = "This cow is not in our database. Would you like to add it? 🆕"
	replyNoCows        = "You don't have any cows registered. 😢"
	replyRemoved       = "Cow has been removed successfully. 👋"
	replyNotYourCow    = "This cow doesn't belong to you or doesn't exist. 🚫"
	replyAlreadyFlag   = "This cow is already reported missing. 🚨"
	replyClassTaken    = "This cow looks just like one registered by another member. Please try a clearer photo. 🐮"
	replyDontFollow    = "I'm sorry, I didn't understand that. Please use the menu options or commands. 🤔"
	replyUnknownCmd    = "Unknown command. Use /menu to see what I can do."
	replyTryAgain      = "Sorry, I'm having trouble looking at photos right now. Please try again. ⚠️"
	replySomethingBad  = "Sorry, something went wrong. Please try again. ⚠️"
	replyMissingFlagOK = "Your cow has been reported missing. Everyone will be notified. 🚨"
)

const (
	actionAddCow   = "add_cow"
	actionListCows = "list_cows"
	actionIdentify = "identify_cow"

	actionRemovePrefix  = "remove_"
	actionMissingPrefix = "missing_"
)

func menuActions() []Action {
	return []Action{
		{Label: "🐮 Add Cow", ID: actionAddCow},
		{Label: "📋 My Cows", ID: actionListCows},
		{Label: "🔍 Identify Cow", ID: actionIdentify},
	}
}

func animalActions(animalID string) []Action {
	return []Action{
		{Label: "🗑️ Remove", ID: actionRemovePrefix + animalID},
		{Label: "🚨 Mark as Missing", ID: actionMissingPrefix + animalID},
	}
}
